package retrieval

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/WessleyAI/condo-ledger/engine/domain"
)

var (
	personnelTerms = []string{"salary", "salaries", "personnel", "payroll", "staff", "employee", "wages"}
	vendorTerms    = []string{"vendor", "paid to", "supplier"}
	categoryTerms  = []string{
		"power", "electricity", "energy", "water", "gas", "elevator",
		"maintenance", "cleaning", "security", "utilities",
	}
	summaryTerms = []string{"total", "summary"}
)

// keywordSet finds whole-word-prefix occurrences of a fixed term list in one pass.
type keywordSet struct {
	terms   []string
	matcher *ahocorasick.Matcher
}

func newKeywordSet(terms ...string) keywordSet {
	var clean []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(clean, t) {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return keywordSet{}
	}
	return keywordSet{terms: clean, matcher: ahocorasick.NewStringMatcher(clean)}
}

// find returns the matched terms in order of first occurrence. A term only
// counts when it starts a word, so "gas" does not fire inside "vegas".
func (k keywordSet) find(lower string) []string {
	if k.matcher == nil {
		return nil
	}
	type hit struct {
		term string
		pos  int
	}
	var hits []hit
	for _, i := range k.matcher.MatchThreadSafe([]byte(lower)) {
		term := k.terms[i]
		if pos := wordStart(lower, term); pos >= 0 {
			hits = append(hits, hit{term, pos})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if a.pos != b.pos {
			return a.pos - b.pos
		}
		return strings.Compare(a.term, b.term)
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.term
	}
	return out
}

func (k keywordSet) any(lower string) bool { return len(k.find(lower)) > 0 }

// wordStart returns the index of the first occurrence of term preceded by a
// non-letter, or -1.
func wordStart(s, term string) int {
	from := 0
	for {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || !isWordRune(lastRune(s[:i])) {
			return i
		}
		from = i + 1
	}
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// categoryWords expands category keys into matchable phrases: "power_supply"
// yields "power_supply" and "power supply".
func categoryWords(categories []string) []string {
	var out []string
	for _, c := range categories {
		out = append(out, c)
		if spaced := strings.ReplaceAll(c, "_", " "); spaced != c {
			out = append(out, spaced)
		}
	}
	return out
}

// vendorTokens splits vendor names into lowercase tokens of at least 4 letters.
func vendorTokens(vendors []string) []string {
	var out []string
	for _, v := range vendors {
		for _, tok := range strings.FieldsFunc(strings.ToLower(v), func(r rune) bool { return !isWordRune(r) }) {
			if len([]rune(tok)) >= 4 {
				out = append(out, tok)
			}
		}
	}
	return out
}

// personnelCategory returns the first known category that looks like a
// personnel category, matched by stem or by fuzzy subsequence.
func personnelCategory(categories []string) (string, bool) {
	for _, c := range categories {
		label := strings.ReplaceAll(strings.ToLower(c), "_", " ")
		for _, term := range personnelTerms {
			stem := term
			if len(stem) > 5 {
				stem = stem[:5]
			}
			if strings.Contains(label, stem) {
				return c, true
			}
			if rank := fuzzy.RankMatchNormalizedFold(term, label); rank >= 0 && rank <= len(term) {
				return c, true
			}
		}
	}
	return "", false
}

var (
	monthNames = []string{
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	}
	monthRe = regexp.MustCompile(`(?i)\b(` + strings.Join(monthNames, "|") + `)\b(?:,?\s+(?:of\s+)?((?:19|20)\d{2})\b)?`)
	keyRe   = regexp.MustCompile(`\b((?:19|20)\d{2})-(0[1-9]|1[0-2])\b`)
	yearRe  = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

// monthMention is a month named in a question and the phrase that named it.
type monthMention struct {
	month  domain.MonthYear
	phrase string
}

// detectMonth finds the first month a question refers to. An explicit year
// wins over refYear. "may" only counts capitalised mid-sentence or next to a year.
func detectMonth(question string, refYear int) (monthMention, bool) {
	if m := keyRe.FindStringSubmatch(question); m != nil {
		year, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		return monthMention{month: domain.MonthYear{Year: year, Month: time.Month(mon)}, phrase: m[0]}, true
	}

	for _, loc := range monthRe.FindAllStringSubmatchIndex(question, -1) {
		name := question[loc[2]:loc[3]]
		hasYear := loc[4] >= 0
		if strings.EqualFold(name, "may") && !hasYear && (name != "May" || loc[0] == 0) {
			continue
		}

		year := refYear
		if hasYear {
			year, _ = strconv.Atoi(question[loc[4]:loc[5]])
		} else if y := yearRe.FindString(question); y != "" {
			year, _ = strconv.Atoi(y)
		}
		idx := slices.Index(monthNames, strings.ToLower(name))
		return monthMention{
			month:  domain.MonthYear{Year: year, Month: time.Month(idx + 1)},
			phrase: question[loc[0]:loc[1]],
		}, true
	}
	return monthMention{}, false
}
