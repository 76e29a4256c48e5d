// Package fallback produces generated diagnoses when the knowledge base
// has no confident match, plus maintenance tips and related issues. Every
// provider sits behind an Adapter that degrades instead of failing.
package fallback

import (
	"context"
	"fmt"

	"github.com/carfix-labs/carfix/engine/domain"
)

// Generated is a structured diagnosis from a generative provider.
type Generated struct {
	Results           []domain.Result `json:"results"`
	FollowUpQuestions []string        `json:"follow_up_questions,omitempty"`
	// Degraded marks the placeholder returned when the provider failed.
	Degraded bool `json:"-"`
}

// RelatedIssue is a problem that often accompanies a primary one.
type RelatedIssue struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

// Generator is a generative diagnosis provider.
type Generator interface {
	Generate(ctx context.Context, query, brand, model string) (Generated, error)
	MaintenanceTips(ctx context.Context, v domain.Vehicle) ([]string, error)
	RelatedIssues(ctx context.Context, brand, model, primary string) ([]RelatedIssue, error)
}

// HumanFollowUps are offered whenever no usable diagnosis exists.
var HumanFollowUps = []string{
	"Would you like to speak with a human technician?",
	"Would you like to schedule an appointment for an in-person diagnosis?",
}

// DefaultTips stand in when a provider answers without a tips list.
var DefaultTips = []string{"Regular service is recommended", "Keep fluids topped off", "Check tire pressure monthly"}

// Offline is the disconnected provider. It never calls out and returns
// canned, vehicle-specific placeholders.
type Offline struct{}

func (Offline) Generate(_ context.Context, _ string, brand, model string) (Generated, error) {
	return Generated{Results: []domain.Result{{
		Brand:    brand,
		Model:    model,
		Problem:  fmt.Sprintf("Issue with %s %s", brand, model),
		Solution: fmt.Sprintf("Unable to generate AI diagnostic response. Please contact support for assistance with your %s %s issue.", brand, model),
		Source:   domain.SourceGenerative,
	}}}, nil
}

func (Offline) MaintenanceTips(context.Context, domain.Vehicle) ([]string, error) {
	return []string{"Regular maintenance recommended", "Check with your service center for details"}, nil
}

func (Offline) RelatedIssues(context.Context, string, string, string) ([]RelatedIssue, error) {
	return []RelatedIssue{}, nil
}

// Degraded is returned in place of a diagnosis when the provider fails or
// produces unusable output.
func Degraded(brand, model string) Generated {
	diy := false
	return Generated{
		Results: []domain.Result{{
			Brand:          brand,
			Model:          model,
			Problem:        "Diagnostic Service Error",
			Severity:       domain.SeverityWarning,
			Solution:       fmt.Sprintf("We encountered an error analyzing your %s %s issue. Please try again or contact our service center directly.", brand, model),
			EstimatedCost:  "Unknown",
			DIYPossible:    &diy,
			AdditionalInfo: "Our technical team has been notified of this issue.",
			Source:         domain.SourceGenerative,
		}},
		FollowUpQuestions: append([]string(nil), HumanFollowUps...),
		Degraded:          true,
	}
}
