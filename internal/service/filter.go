package service

import (
	"slices"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

// FilterCandidates narrows candidates by date. The first matching rule wins:
//
//  1. both range bounds set: inclusive [DateStart, DateEnd]
//  2. year and a month set: same year, month in the set
//  3. year and/or a single month
//  4. nothing set: all candidates pass
//
// Whenever a rule applies, candidates with an unknown date are dropped.
// Listing order is preserved.
func FilterCandidates(candidates []domain.InvoiceRecord, c domain.FilterCriteria) []domain.InvoiceRecord {
	if !c.Active() {
		return candidates
	}

	match := criteriaPredicate(c)
	out := make([]domain.InvoiceRecord, 0, len(candidates))
	for _, rec := range candidates {
		if !rec.InvoiceDate.Known() {
			continue
		}
		if match(rec.InvoiceDate) {
			out = append(out, rec)
		}
	}
	return out
}

func criteriaPredicate(c domain.FilterCriteria) func(domain.DateOnly) bool {
	switch {
	case c.HasRange():
		start, end := c.DateStart.Time, c.DateEnd.Time
		return func(d domain.DateOnly) bool {
			return !d.Before(start) && !d.After(end)
		}

	case len(c.Months) > 0:
		return func(d domain.DateOnly) bool {
			if c.Year != 0 && d.Year() != c.Year {
				return false
			}
			return slices.Contains(c.Months, int(d.Month()))
		}

	default:
		return func(d domain.DateOnly) bool {
			if c.Year != 0 && d.Year() != c.Year {
				return false
			}
			if c.Month != 0 && int(d.Month()) != c.Month {
				return false
			}
			return true
		}
	}
}
