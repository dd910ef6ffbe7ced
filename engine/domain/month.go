package domain

import (
	"fmt"
	"sort"
	"time"
)

const monthLayout = "2006-01"

// MonthYear is a parsed "YYYY-MM" partition key.
type MonthYear struct {
	Year  int
	Month time.Month
}

// ParseMonthYear parses a canonical "YYYY-MM" key.
func ParseMonthYear(s string) (MonthYear, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return MonthYear{}, NewValidationError("month_year", s, ErrInvalidMonth)
	}
	return MonthYear{Year: t.Year(), Month: t.Month()}, nil
}

// Key returns the canonical "YYYY-MM" form.
func (m MonthYear) Key() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// Display returns "March 2024".
func (m MonthYear) Display() string { return fmt.Sprintf("%s %d", m.Month, m.Year) }

// Index is a month ordinal used for distance between keys.
func (m MonthYear) Index() int { return m.Year*12 + int(m.Month) - 1 }

// DisplayMonth renders a key as "March 2024", or returns it unchanged if it does not parse.
func DisplayMonth(key string) string {
	m, err := ParseMonthYear(key)
	if err != nil {
		return key
	}
	return m.Display()
}

// NearestMonths returns up to n known keys closest to target. Ties go to the later month.
func NearestMonths(target MonthYear, known []string, n int) []string {
	type cand struct {
		key  string
		dist int
		idx  int
	}
	var cands []cand
	for _, k := range known {
		m, err := ParseMonthYear(k)
		if err != nil {
			continue
		}
		d := m.Index() - target.Index()
		if d < 0 {
			d = -d
		}
		cands = append(cands, cand{key: m.Key(), dist: d, idx: m.Index()})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].idx > cands[j].idx
	})
	out := make([]string, 0, n)
	for _, c := range cands {
		if len(out) == n {
			break
		}
		out = append(out, c.key)
	}
	return out
}

// LatestMonth returns the most recent valid key, or "" if none parse.
func LatestMonth(known []string) string {
	best, bestIdx := "", -1
	for _, k := range known {
		m, err := ParseMonthYear(k)
		if err != nil {
			continue
		}
		if m.Index() > bestIdx {
			best, bestIdx = m.Key(), m.Index()
		}
	}
	return best
}
