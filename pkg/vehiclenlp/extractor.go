// Package vehiclenlp extracts vehicle make, model and year mentions from
// free text in English or Arabic, using the supported make tables.
package vehiclenlp

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/carfix-labs/carfix/engine/domain"
)

// VehicleMatch represents an extracted vehicle mention.
type VehicleMatch struct {
	Make       string  // e.g. "Toyota"
	Model      string  // e.g. "Corolla", empty if not found
	Year       int     // 0 if not found
	Confidence float64 // 0.0-1.0
}

type name struct {
	lower     string
	canonical string
}

var (
	makeNames    []name            // aliases and canonical names, longest first
	modelsByMake map[string][]name // canonical make -> models, longest first
	uniqueModels map[string]string // model lower -> make, for models only one make has
)

var (
	yearFullRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	yearAbbrRe = regexp.MustCompile(`'(\d{2})\b`)
)

func init() {
	modelsByMake = make(map[string][]name, len(domain.SupportedMakes))
	uniqueModels = make(map[string]string)
	owners := make(map[string]int)

	for mk, models := range domain.SupportedMakes {
		makeNames = append(makeNames, name{strings.ToLower(mk), mk})
		for _, m := range models {
			ml := strings.ToLower(m)
			modelsByMake[mk] = append(modelsByMake[mk], name{ml, m})
			owners[ml]++
		}
		sortLongestFirst(modelsByMake[mk])
	}
	for alias, mk := range domain.MakeAliases {
		makeNames = append(makeNames, name{alias, mk})
	}
	sortLongestFirst(makeNames)

	for mk, models := range domain.SupportedMakes {
		for _, m := range models {
			ml := strings.ToLower(m)
			// Bare numbers like "500" or "128" are too ambiguous on their own.
			if owners[ml] == 1 && strings.IndexFunc(ml, unicode.IsLetter) >= 0 {
				uniqueModels[ml] = mk
			}
		}
	}
}

func sortLongestFirst(ns []name) {
	sort.Slice(ns, func(i, j int) bool {
		if len(ns[i].lower) != len(ns[j].lower) {
			return len(ns[i].lower) > len(ns[j].lower)
		}
		return ns[i].lower < ns[j].lower
	})
}

// Extract finds all vehicle mentions in text, best first.
func Extract(text string) []VehicleMatch {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	year := findYear(lower)

	var matches []VehicleMatch
	seen := make(map[string]bool)
	claimed := make([]bool, len(lower))

	for _, mk := range makeNames {
		for _, at := range findAll(lower, mk.lower) {
			if claimed[at] {
				continue
			}
			markClaimed(claimed, at, len(mk.lower))

			after := lower[at+len(mk.lower) : min(at+len(mk.lower)+40, len(lower))]
			model := findModel(mk.canonical, after)

			key := mk.canonical + "|" + model
			if seen[key] {
				continue
			}
			seen[key] = true
			matches = append(matches, VehicleMatch{
				Make:       mk.canonical,
				Model:      model,
				Year:       year,
				Confidence: confidence(model != "", year > 0),
			})
		}
	}

	// Models such as "Corolla" identify their make without it being named.
	for ml, mk := range uniqueModels {
		if len(findAll(lower, ml)) == 0 {
			continue
		}
		canonical := canonicalModel(mk, ml)
		if seen[mk+"|"+canonical] || seen[mk+"|"] {
			continue
		}
		seen[mk+"|"+canonical] = true
		matches = append(matches, VehicleMatch{
			Make:       mk,
			Model:      canonical,
			Year:       year,
			Confidence: confidence(true, year > 0) - 0.1,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Make+matches[i].Model < matches[j].Make+matches[j].Model
	})
	return matches
}

// ExtractBest returns the single highest-confidence match, or nil.
func ExtractBest(text string) *VehicleMatch {
	matches := Extract(text)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func confidence(model, year bool) float64 {
	switch {
	case model && year:
		return 0.95
	case model:
		return 0.80
	case year:
		return 0.70
	}
	return 0.60
}

// findModel returns the first model of mk that opens the fragment after the make.
func findModel(mk, after string) string {
	trimmed := strings.TrimLeftFunc(after, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\'' || r == '’'
	})
	for _, m := range modelsByMake[mk] {
		if strings.HasPrefix(trimmed, m.lower) && boundaryAt(trimmed, len(m.lower)) {
			return m.canonical
		}
	}
	return ""
}

func canonicalModel(mk, lower string) string {
	for _, m := range modelsByMake[mk] {
		if m.lower == lower {
			return m.canonical
		}
	}
	return ""
}

func findYear(lower string) int {
	if m := yearFullRe.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y >= domain.MinModelYear && y <= domain.MaxModelYear {
			return y
		}
	}
	if m := yearAbbrRe.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y <= domain.MaxModelYear%100 {
			return 2000 + y
		}
		if 1900+y >= domain.MinModelYear {
			return 1900 + y
		}
	}
	return 0
}

// findAll returns byte offsets of whole-word occurrences of needle.
// regexp's \b is ASCII-only, so boundaries are checked by hand to cover
// Arabic names too.
func findAll(s, needle string) []int {
	var out []int
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], needle)
		if i < 0 {
			break
		}
		at := from + i
		if boundaryBefore(s, at) && boundaryAt(s, at+len(needle)) {
			out = append(out, at)
		}
		from = at + len(needle)
	}
	return out
}

func boundaryBefore(s string, at int) bool {
	if at == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:at])
	return !isWordRune(r)
}

func boundaryAt(s string, at int) bool {
	if at >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[at:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func markClaimed(claimed []bool, at, n int) {
	for i := at; i < at+n && i < len(claimed); i++ {
		claimed[i] = true
	}
}
