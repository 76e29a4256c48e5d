package diagnose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/keywords"
)

// Policy selects how candidates are scored and filtered.
type Policy string

const (
	// PolicyRawCount ranks by the number of shared keywords.
	PolicyRawCount Policy = "raw_count"
	// PolicyNormalized ranks by shared keywords over query keywords.
	PolicyNormalized Policy = "normalized"
	// PolicyThresholded is PolicyNormalized, keeping only scores above the threshold.
	PolicyThresholded Policy = "thresholded"
)

// ParsePolicy accepts the policy names, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyRawCount, PolicyNormalized, PolicyThresholded:
		return p, nil
	case "":
		return PolicyNormalized, nil
	}
	return "", fmt.Errorf("diagnose: unknown score policy %q", s)
}

// Overlap returns the number of distinct query keywords present in the
// issue keywords, and that count divided by the number of distinct query
// keywords (at least 1). Both sides are normalized first.
func Overlap(query, issue []string) (int, float64) {
	q := keywords.NormalizeAll(query)
	k := make(map[string]struct{}, len(issue))
	for _, w := range keywords.NormalizeAll(issue) {
		k[w] = struct{}{}
	}
	count := 0
	for _, w := range q {
		if _, ok := k[w]; ok {
			count++
		}
	}
	return count, float64(count) / float64(max(len(q), 1))
}

// Rank scores candidates against the query keywords, drops non-matches,
// orders the rest best first (ties keep candidate order) and truncates to
// limit. limit <= 0 keeps everything.
func Rank(query []string, candidates []domain.IssueRecord, policy Policy, threshold float64, limit int) []domain.Result {
	out := []domain.Result{}
	for _, rec := range candidates {
		count, score := Overlap(query, rec.Keywords)
		if count == 0 {
			continue
		}
		if policy == PolicyThresholded && score <= threshold {
			continue
		}
		out = append(out, domain.Result{
			Brand:      rec.Brand,
			Model:      rec.Model,
			Problem:    rec.Problem,
			Solution:   rec.Solution,
			Score:      score,
			MatchCount: count,
			Source:     domain.SourceKnowledge,
		})
	}

	if policy == PolicyRawCount {
		sort.SliceStable(out, func(i, j int) bool { return out[i].MatchCount > out[j].MatchCount })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
