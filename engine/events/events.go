// Package events publishes query and call logs for asynchronous persistence.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/pkg/natsutil"
)

// Subjects.
const (
	SubjectDiagnosis = "carfix.diagnosis.logged"
	SubjectCall      = "carfix.call.logged"
)

// Sink receives logs. Implementations must not block the request path for long.
type Sink interface {
	DiagnosisLogged(ctx context.Context, l domain.QueryLog) error
	CallLogged(ctx context.Context, l domain.CallLog) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) DiagnosisLogged(context.Context, domain.QueryLog) error { return nil }
func (Nop) CallLogged(context.Context, domain.CallLog) error       { return nil }

// NATSSink publishes logs as JSON on the carfix subjects.
type NATSSink struct {
	pub    natsutil.Publisher
	logger *slog.Logger
}

// NewNATSSink creates a sink publishing through pub, usually a *nats.Conn.
func NewNATSSink(pub natsutil.Publisher, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{pub: pub, logger: logger}
}

func (s *NATSSink) DiagnosisLogged(ctx context.Context, l domain.QueryLog) error {
	stamp(&l.ID, &l.At)
	return natsutil.Publish(ctx, s.pub, SubjectDiagnosis, l)
}

func (s *NATSSink) CallLogged(ctx context.Context, l domain.CallLog) error {
	stamp(&l.ID, &l.At)
	return natsutil.Publish(ctx, s.pub, SubjectCall, l)
}

func stamp(id *string, at *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if at.IsZero() {
		*at = time.Now().UTC()
	}
}

// QueryLogFor summarizes a diagnosis for logging. The response is the
// follow-up question for triaged queries and the JSON results otherwise.
func QueryLogFor(q domain.Query, d domain.Diagnosis) domain.QueryLog {
	l := domain.QueryLog{
		Query:    q.Text,
		Brand:    q.Brand,
		Model:    q.Model,
		Language: d.Language,
		Results:  len(d.Results),
	}
	switch {
	case d.FollowUp != "":
		l.Response = d.FollowUp
	case len(d.Results) > 0:
		problems := make([]string, len(d.Results))
		for i, r := range d.Results {
			problems[i] = r.Problem
		}
		b, _ := json.Marshal(problems)
		l.Response = string(b)
	default:
		l.Response = strings.TrimSpace(d.Message)
	}
	return l
}
