package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minInvoiceYear = 2000
	maxInvoiceYear = 2099
)

// Month names after accent folding and lower-casing. Abbreviations are
// matched with any trailing dot removed.
var frenchMonths = map[string]time.Month{
	"janvier": time.January, "janv": time.January,
	"fevrier": time.February, "fevr": time.February, "fev": time.February,
	"mars":  time.March,
	"avril": time.April, "avr": time.April,
	"mai":     time.May,
	"juin":    time.June,
	"juillet": time.July, "juil": time.July,
	"aout":      time.August,
	"septembre": time.September, "sept": time.September,
	"octobre": time.October, "oct": time.October,
	"novembre": time.November, "nov": time.November,
	"decembre": time.December, "dec": time.December,
}

var englishMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	frenchLabelledDate = regexp.MustCompile(`(?i)(?:commande le|commande du)\s+(\d{1,2})\s+([a-z]+)\.?\s+(\d{4})`)
	frenchDate         = regexp.MustCompile(`(?i)\b(\d{1,2})\s+([a-z]+)\.?\s+(\d{4})\b`)
	numericDate        = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	englishDate        = regexp.MustCompile(`(?i)(?:ordered on\s+)?\b([a-z]{3})[a-z]*\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
)

// ParseInvoiceDate extracts the first plausible order date from listing text.
// French forms ("Commandé le 15 janvier 2025", "3 févr. 2024") are tried first,
// then dd/mm/yyyy, then English ("Ordered on Jan 15, 2025"). Text without a
// recognisable date yields the zero date.
func ParseInvoiceDate(text string) domain.DateOnly {
	folded := foldAccents(text)

	for _, re := range []*regexp.Regexp{frenchLabelledDate, frenchDate} {
		for _, m := range re.FindAllStringSubmatch(folded, -1) {
			month, ok := frenchMonths[strings.ToLower(m[2])]
			if !ok {
				continue
			}
			if d, ok := buildDate(m[3], month, m[1]); ok {
				return d
			}
		}
	}

	for _, m := range numericDate.FindAllStringSubmatch(folded, -1) {
		mm, err := strconv.Atoi(m[2])
		if err != nil || mm < 1 || mm > 12 {
			continue
		}
		if d, ok := buildDate(m[3], time.Month(mm), m[1]); ok {
			return d
		}
	}

	for _, m := range englishDate.FindAllStringSubmatch(folded, -1) {
		month, ok := englishMonths[strings.ToLower(m[1])]
		if !ok {
			continue
		}
		if d, ok := buildDate(m[3], month, m[2]); ok {
			return d
		}
	}

	return domain.DateOnly{}
}

// buildDate rejects days that do not exist in the month and years outside the plausible window
func buildDate(yearStr string, month time.Month, dayStr string) (domain.DateOnly, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < minInvoiceYear || year > maxInvoiceYear {
		return domain.DateOnly{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return domain.DateOnly{}, false
	}

	d := domain.NewDate(year, month, day)
	if d.Day() != day || d.Month() != month {
		return domain.DateOnly{}, false
	}
	return d, true
}

// foldAccents strips combining marks so "févr." and "fevr." compare equal
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
