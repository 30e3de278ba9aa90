package kv

import "strings"

const (
	UsersKey       = "users"
	CurrentUserKey = "currentUser"
	DarkModeKey    = "darkMode"
)

func scoped(prefix, email string) string {
	return prefix + strings.ToLower(strings.TrimSpace(email))
}

func FaceDescriptorsKey(email string) string  { return scoped("faceDescriptors_", email) }
func BalanceKey(email string) string          { return scoped("balance_", email) }
func EarningsKey(email string) string         { return scoped("earnings_", email) }
func EarningsHistoryKey(email string) string  { return scoped("earningsHistory_", email) }
func LastCryptoPricesKey(email string) string { return scoped("lastCryptoPrices_", email) }
func TransactionsKey(email string) string     { return scoped("transactions_", email) }

// UserDarkModeKey scopes the theme preference to one user on the server.
func UserDarkModeKey(email string) string { return scoped("darkMode_", email) }
