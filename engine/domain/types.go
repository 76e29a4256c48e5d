// Package domain defines the core types, constants, and validation shared by
// the carfix engine. It acts as the validation gate at request entry points.
package domain

import "strings"

// Language is an ISO 639-1 code for the languages the matcher understands.
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
)

// Source tells where a diagnostic result came from.
type Source string

const (
	SourceKnowledge  Source = "knowledge"
	SourceGenerative Source = "generative"
)

// Severity grades how urgent a problem is.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
	SeverityMinor    Severity = "Minor"
)

// ParseSeverity is case-insensitive and returns "" for unknown values.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "warning":
		return SeverityWarning
	case "minor":
		return SeverityMinor
	}
	return ""
}

// IssueRecord is one known problem/solution pair for a brand and model.
// Records are immutable once loaded into a store.
type IssueRecord struct {
	ID       string   `json:"id" yaml:"id"`
	Brand    string   `json:"brand" yaml:"brand"`
	Model    string   `json:"model" yaml:"model"`
	Problem  string   `json:"problem" yaml:"problem"`
	Solution string   `json:"solution" yaml:"solution"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Query is a diagnostic request. Empty Brand or Model means "any".
type Query struct {
	Text  string `json:"query"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

// Vehicle identifies a car for tips and related-issue lookups.
type Vehicle struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  int    `json:"year,omitempty"`
}

// Result is a single ranked candidate. Score is always in [0,1];
// MatchCount carries the raw keyword overlap.
type Result struct {
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Problem        string   `json:"problem"`
	Solution       string   `json:"solution"`
	Score          float64  `json:"score"`
	MatchCount     int      `json:"match_count"`
	Source         Source   `json:"source"`
	Severity       Severity `json:"severity,omitempty"`
	EstimatedCost  string   `json:"estimated_cost,omitempty"`
	DIYPossible    *bool    `json:"diy_possible,omitempty"`
	ToolsRequired  []string `json:"tools_required,omitempty"`
	TimeEstimate   string   `json:"time_estimate,omitempty"`
	PartsNeeded    []string `json:"parts_needed,omitempty"`
	AdditionalInfo string   `json:"additional_info,omitempty"`
}

// Diagnosis is the full response to a Query.
type Diagnosis struct {
	Results           []Result `json:"results"`
	FollowUp          string   `json:"follow_up_question,omitempty"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	Message           string   `json:"message,omitempty"`
	Language          Language `json:"language"`
}

// EntityKind distinguishes the located entity tables.
type EntityKind string

const (
	KindCenter      EntityKind = "center"
	KindTowOperator EntityKind = "tow_operator"
)

// LocatedEntity is anything with a name and a position: maintenance
// centers and tow-truck operators.
type LocatedEntity struct {
	ID        int64      `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Latitude  float64    `json:"latitude" yaml:"latitude"`
	Longitude float64    `json:"longitude" yaml:"longitude"`
	Phone     string     `json:"phone,omitempty" yaml:"phone"`
	Address   string     `json:"address,omitempty" yaml:"address"`
	Rating    float64    `json:"rating,omitempty" yaml:"rating"`
	Kind      EntityKind `json:"kind" yaml:"-"`
}

// RankedLocation pairs an entity with its great-circle distance from the
// query point.
type RankedLocation struct {
	Entity     LocatedEntity `json:"entity"`
	DistanceKm float64       `json:"distance_km"`
}
