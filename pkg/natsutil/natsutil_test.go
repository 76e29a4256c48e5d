package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type payload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := Connect(srv.ClientURL(), "natsutil-test", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type capturePublisher struct{ msg *nats.Msg }

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	c.msg = m
	return nil
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestPublishEncodesJSON(t *testing.T) {
	p := &capturePublisher{}
	if err := Publish(context.Background(), p, "test.pub", payload{Name: "hello", Value: 1}); err != nil {
		t.Fatal(err)
	}
	if p.msg.Subject != "test.pub" {
		t.Errorf("subject = %q", p.msg.Subject)
	}
	var got payload
	if err := json.Unmarshal(p.msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "hello" || got.Value != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestPublishMarshalError(t *testing.T) {
	if err := Publish(context.Background(), &capturePublisher{}, "test.err", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestDispatch(t *testing.T) {
	var got payload
	h := func(_ context.Context, p payload) error { got = p; return nil }

	if err := dispatch(&nats.Msg{Data: []byte(`{"name":"x","value":3}`)}, Handler[payload](h)); err != nil {
		t.Fatal(err)
	}
	if got.Value != 3 {
		t.Errorf("handler got %+v", got)
	}
	if err := dispatch(&nats.Msg{Data: []byte("{bad")}, Handler[payload](h)); err == nil {
		t.Error("expected decode error")
	}

	failing := func(context.Context, payload) error { return errors.New("db locked") }
	if err := dispatch(&nats.Msg{Data: []byte(`{}`)}, Handler[payload](failing)); err == nil {
		t.Error("expected handler error")
	}
}

func TestPublishSubscribe(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan payload, 1)
	sub, err := Subscribe(nc, "test.sub", "", nil, func(_ context.Context, p payload) error {
		ch <- p
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "test.sub", payload{Name: "world", Value: 42}); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-ch:
		if p.Name != "world" || p.Value != 42 {
			t.Fatalf("unexpected: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestQueueSubscribeDeliversOnce(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan payload, 4)
	for i := 0; i < 2; i++ {
		sub, err := Subscribe(nc, "test.queue", "workers", nil, func(_ context.Context, p payload) error {
			ch <- p
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		defer sub.Unsubscribe()
	}

	if err := Publish(context.Background(), nc, "test.queue", payload{Name: "once"}); err != nil {
		t.Fatal(err)
	}
	nc.Flush()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
	select {
	case p := <-ch:
		t.Fatalf("message delivered twice: %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
}
