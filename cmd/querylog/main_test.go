package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/events"
	"github.com/carfix-labs/carfix/engine/sqlstore"
	"github.com/carfix-labs/carfix/pkg/metrics"
	"github.com/carfix-labs/carfix/pkg/natsutil"
)

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := natsutil.Connect(srv.ClientURL(), "querylog-test", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestConsumerPersistsEvents(t *testing.T) {
	nc := startNATS(t)
	db, err := sqlstore.Open(filepath.Join(t.TempDir(), "log.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg := metrics.New()
	if _, err := subscribe(nc, db, "querylog", newConsumerMetrics(reg), nil); err != nil {
		t.Fatal(err)
	}

	sink := events.NewNATSSink(nc, nil)
	ctx := context.Background()
	l := domain.QueryLog{Query: "brakes squeal", Brand: "Toyota", Model: "Corolla", Language: domain.LangEnglish, Results: 1}
	if err := sink.DiagnosisLogged(ctx, l); err != nil {
		t.Fatal(err)
	}
	if err := sink.CallLogged(ctx, domain.CallLog{CallerNumber: "0100", OwnerID: 3}); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	var got []domain.QueryLog
	waitFor(t, func() bool {
		got, err = db.RecentQueries(ctx, 10)
		return err == nil && len(got) == 1
	})
	if got[0].Query != "brakes squeal" || got[0].Brand != "Toyota" || got[0].ID == "" {
		t.Errorf("stored log = %+v", got[0])
	}

	waitFor(t, func() bool {
		return strings.Contains(reg.Render(), `carfix_querylog_persisted_total{subject="carfix.call.logged"} 1`)
	})
	if !strings.Contains(reg.Render(), `carfix_querylog_persisted_total{subject="carfix.diagnosis.logged"} 1`) {
		t.Errorf("diagnosis counter missing:\n%s", reg.Render())
	}
}

func TestConsumerIgnoresRedelivery(t *testing.T) {
	nc := startNATS(t)
	db, err := sqlstore.Open(filepath.Join(t.TempDir(), "log.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg := metrics.New()
	if _, err := subscribe(nc, db, "", newConsumerMetrics(reg), nil); err != nil {
		t.Fatal(err)
	}

	sink := events.NewNATSSink(nc, nil)
	l := domain.QueryLog{ID: "q-1", Query: "engine overheating", At: time.Now().UTC()}
	for range 3 {
		if err := sink.DiagnosisLogged(context.Background(), l); err != nil {
			t.Fatal(err)
		}
	}
	_ = nc.Flush()

	waitFor(t, func() bool {
		return strings.Contains(reg.Render(), `carfix_querylog_persisted_total{subject="carfix.diagnosis.logged"} 3`)
	})
	got, err := db.RecentQueries(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("stored %d logs, want 1", len(got))
	}
}

type failingWriter struct {
	mu    sync.Mutex
	calls int
}

func (f *failingWriter) LogQuery(context.Context, domain.QueryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("disk full")
}

func (f *failingWriter) LogCall(context.Context, domain.CallLog) error {
	return errors.New("disk full")
}

func TestConsumerCountsFailures(t *testing.T) {
	nc := startNATS(t)
	w := &failingWriter{}
	reg := metrics.New()
	if _, err := subscribe(nc, w, "querylog", newConsumerMetrics(reg), nil); err != nil {
		t.Fatal(err)
	}

	// Malformed payloads never reach the writer.
	if err := nc.Publish(events.SubjectDiagnosis, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if err := events.NewNATSSink(nc, nil).DiagnosisLogged(context.Background(), domain.QueryLog{Query: "x"}); err != nil {
		t.Fatal(err)
	}
	_ = nc.Flush()

	waitFor(t, func() bool {
		return strings.Contains(reg.Render(), `carfix_querylog_failed_total{subject="carfix.diagnosis.logged"} 1`)
	})
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.calls != 1 {
		t.Errorf("writer called %d times, want 1", w.calls)
	}
}

func TestDrainClosesConnection(t *testing.T) {
	nc := startNATS(t)
	if err := drain(nc, 3*time.Second); err != nil {
		t.Fatal(err)
	}
	if !nc.IsClosed() {
		t.Error("connection still open after drain")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("NATS_URL", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("QUEUE", "workers")
	cfg := loadConfig()
	if cfg.NATSURL != nats.DefaultURL || cfg.SQLitePath != "carfix.db" || cfg.Queue != "workers" {
		t.Errorf("config = %+v", cfg)
	}
}
