package fx

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var localeByCurrency = map[string]language.Tag{
	"BRL": language.BrazilianPortuguese,
	"USD": language.AmericanEnglish,
	"EUR": language.German,
	"GBP": language.BritishEnglish,
	"JPY": language.Japanese,
}

// Locale returns the language used to render amounts in code.
func Locale(code string) language.Tag {
	if tag, ok := localeByCurrency[strings.ToUpper(code)]; ok {
		return tag
	}
	return language.AmericanEnglish
}

// Format renders value with two fraction digits, the currency symbol and the
// digit grouping of the currency's home locale. Unknown codes render as USD.
func Format(value float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	p := message.NewPrinter(Locale(unit.String()))
	return p.Sprintf("%v %v", currency.Symbol(unit), number.Decimal(value, number.Scale(2)))
}

// FormatNumber renders value with two fraction digits in code's locale, without a symbol.
func FormatNumber(value float64, code string) string {
	p := message.NewPrinter(Locale(code))
	return p.Sprint(number.Decimal(value, number.Scale(2)))
}
