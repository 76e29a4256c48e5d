package domain

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxQueryRunes caps free-text input.
const MaxQueryRunes = 2000

const maxFilterRunes = 64

// ValidateQuery checks a diagnostic query. The text is free-form symptom
// prose that only ever reaches bound parameters and keyword matching, so
// only emptiness and length are checked. Brand and model are optional
// filters with a length cap.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return NewValidationError("query", q.Text, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(text) > MaxQueryRunes {
		return NewValidationError("query", string([]rune(text)[:64]), ErrQueryTooLong)
	}
	if utf8.RuneCountInString(q.Brand) > maxFilterRunes {
		return NewValidationError("brand", q.Brand, ErrInvalidQuery)
	}
	if utf8.RuneCountInString(q.Model) > maxFilterRunes {
		return NewValidationError("model", q.Model, ErrInvalidQuery)
	}
	return nil
}

// ValidateVehicle requires a brand and model. Year is optional, but when set
// it must fall inside the supported range.
func ValidateVehicle(v Vehicle) error {
	if strings.TrimSpace(v.Brand) == "" {
		return NewValidationError("brand", v.Brand, ErrInvalidVehicle)
	}
	if strings.TrimSpace(v.Model) == "" {
		return NewValidationError("model", v.Model, ErrInvalidVehicle)
	}
	if v.Year != 0 && (v.Year < MinModelYear || v.Year > MaxModelYear) {
		return NewValidationError("year", strconv.Itoa(v.Year), ErrYearOutOfRange)
	}
	return nil
}

// ValidateCoordinates rejects NaN, infinities and out-of-range values.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return NewValidationError("lat", strconv.FormatFloat(lat, 'f', -1, 64), ErrInvalidCoordinates)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return NewValidationError("lon", strconv.FormatFloat(lon, 'f', -1, 64), ErrInvalidCoordinates)
	}
	return nil
}

// ValidateIssue checks a knowledge-base record before it is indexed.
func ValidateIssue(rec IssueRecord) error {
	switch {
	case strings.TrimSpace(rec.ID) == "":
		return NewValidationError("id", rec.ID, ErrInvalidIssue)
	case strings.TrimSpace(rec.Problem) == "":
		return NewValidationError("problem", rec.ID, ErrInvalidIssue)
	case strings.TrimSpace(rec.Solution) == "":
		return NewValidationError("solution", rec.ID, ErrInvalidIssue)
	case len(rec.Keywords) == 0:
		return NewValidationError("keywords", rec.ID, ErrInvalidIssue)
	}
	return nil
}
