package semantic

import (
	"github.com/google/uuid"

	"github.com/carfix-labs/carfix/engine/domain"
)

// Hit is a similar issue returned by a vector search.
type Hit struct {
	IssueID  string  `json:"issue_id"`
	Score    float32 `json:"score"`
	Brand    string  `json:"brand"`
	Model    string  `json:"model"`
	Problem  string  `json:"problem"`
	Solution string  `json:"solution"`
}

// IssueVector is one knowledge-base issue with its embedding.
type IssueVector struct {
	Issue     domain.IssueRecord
	Embedding []float32
}

var issueNamespace = uuid.MustParse("6f1c2a52-3b9e-4f0e-9d59-6a3c1e7b2d10")

// PointID derives a stable Qdrant point id from an issue id, so re-indexing
// overwrites instead of duplicating.
func PointID(issueID string) string {
	return uuid.NewSHA1(issueNamespace, []byte(issueID)).String()
}

// Text is what gets embedded for an issue.
func Text(rec domain.IssueRecord) string {
	return rec.Brand + " " + rec.Model + ": " + rec.Problem + ". " + rec.Solution
}
