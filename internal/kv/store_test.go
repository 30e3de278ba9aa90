package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizbank/frizbank/internal/logging"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	file, err := OpenFile(filepath.Join(t.TempDir(), "state", "store.json"))
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemory(),
		"redis":  NewRedis(client, "test:"),
		"file":   file,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "a", "1", 0))
			require.NoError(t, s.Set(ctx, "a", "2", 0))
			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "2", got)

			require.NoError(t, s.SetMany(ctx, map[string]string{"b": "x", "c": "y"}))
			for key, want := range map[string]string{"b": "x", "c": "y"} {
				got, err := s.Get(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			require.NoError(t, s.Remove(ctx, "a"))
			require.NoError(t, s.Remove(ctx, "a"))
			_, err = s.Get(ctx, "a")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestJSONHelpersFailClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type prefs struct {
		DarkMode bool `json:"dark_mode"`
	}
	require.NoError(t, SetJSON(ctx, s, "prefs", prefs{DarkMode: true}, 0))

	var got prefs
	ok, err := GetJSON(ctx, s, logging.Discard(), "prefs", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.DarkMode)

	require.NoError(t, s.Set(ctx, "prefs", "{not json", 0))
	ok, err = GetJSON(ctx, s, logging.Discard(), "prefs", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = GetJSON(ctx, s, nil, "absent", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryTTLExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "quote", "1", 30*time.Second))
	_, err := m.Get(ctx, "quote")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	_, err = m.Get(ctx, "quote")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTTLAndPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedis(client, "frizbank:")
	require.NoError(t, s.Set(ctx, "market", "[]", time.Minute))
	assert.True(t, mr.Exists("frizbank:market"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "market")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileSurvivesReopenAndCorruption(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, CurrentUserKey, `{"email":"ana@x.com"}`, 0))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, CurrentUserKey)
	require.NoError(t, err)
	assert.Equal(t, `{"email":"ana@x.com"}`, got)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err = reopened.Get(ctx, CurrentUserKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestKeysAreScopedByNormalizedEmail(t *testing.T) {
	assert.Equal(t, "balance_ana@x.com", BalanceKey(" Ana@X.com "))
	assert.Equal(t, "faceDescriptors_ana@x.com", FaceDescriptorsKey("ana@x.com"))
	assert.Equal(t, "earningsHistory_ana@x.com", EarningsHistoryKey("ana@x.com"))
	assert.Equal(t, "lastCryptoPrices_ana@x.com", LastCryptoPricesKey("ana@x.com"))
	assert.Equal(t, "transactions_ana@x.com", TransactionsKey("ana@x.com"))
	assert.Equal(t, "earnings_ana@x.com", EarningsKey("ana@x.com"))
	assert.Equal(t, "darkMode_ana@x.com", UserDarkModeKey("ana@x.com"))
}
