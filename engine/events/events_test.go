package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/nats-io/nats.go"
)

type capturePublisher struct{ msgs []*nats.Msg }

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func TestNATSSink_StampsAndPublishes(t *testing.T) {
	p := &capturePublisher{}
	s := NewNATSSink(p, nil)

	if err := s.DiagnosisLogged(context.Background(), domain.QueryLog{Query: "brakes squeal"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CallLogged(context.Background(), domain.CallLog{CallerNumber: "0100", OwnerID: 2}); err != nil {
		t.Fatal(err)
	}
	if len(p.msgs) != 2 {
		t.Fatalf("published %d messages", len(p.msgs))
	}
	if p.msgs[0].Subject != SubjectDiagnosis || p.msgs[1].Subject != SubjectCall {
		t.Errorf("subjects = %q, %q", p.msgs[0].Subject, p.msgs[1].Subject)
	}

	var call domain.CallLog
	if err := json.Unmarshal(p.msgs[1].Data, &call); err != nil {
		t.Fatal(err)
	}
	if call.ID == "" || call.At.IsZero() || call.OwnerID != 2 {
		t.Errorf("call not stamped: %+v", call)
	}
}

func TestQueryLogFor(t *testing.T) {
	q := domain.Query{Text: "car not starting", Brand: "Toyota"}

	triaged := QueryLogFor(q, domain.Diagnosis{FollowUp: "Battery?", Language: domain.LangEnglish})
	if triaged.Response != "Battery?" || triaged.Results != 0 {
		t.Errorf("triaged log = %+v", triaged)
	}

	matched := QueryLogFor(q, domain.Diagnosis{Results: []domain.Result{{Problem: "Car not starting"}}})
	if matched.Response != `["Car not starting"]` || matched.Results != 1 {
		t.Errorf("matched log = %+v", matched)
	}

	none := QueryLogFor(q, domain.Diagnosis{Message: "No relevant issues found."})
	if none.Response != "No relevant issues found." {
		t.Errorf("no-match log = %+v", none)
	}
}
