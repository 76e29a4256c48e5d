package lang

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/pkg/fn"
)

type countingTranslator struct {
	calls int
	out   string
	err   error
}

func (c *countingTranslator) Translate(_ context.Context, text string, _ domain.Language) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if c.out == "" {
		return "translated:" + text, nil
	}
	return c.out, nil
}

func TestPassThrough(t *testing.T) {
	out, err := PassThrough{}.Translate(context.Background(), "مرحبا", domain.LangEnglish)
	if err != nil || out != "مرحبا" {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestSafe_Success(t *testing.T) {
	next := &countingTranslator{}
	s := NewSafe(next, nil, DefaultSafeOptions())
	out, err := s.Translate(context.Background(), "السيارة لا تعمل", domain.LangEnglish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "translated:السيارة لا تعمل" {
		t.Errorf("got %q", out)
	}
}

func TestSafe_ErrorReturnsOriginal(t *testing.T) {
	next := &countingTranslator{err: errors.New("provider down")}
	s := NewSafe(next, nil, DefaultSafeOptions())
	out, err := s.Translate(context.Background(), "الفرامل", domain.LangEnglish)
	if err != nil {
		t.Fatalf("Safe must not fail, got %v", err)
	}
	if out != "الفرامل" {
		t.Errorf("got %q, want original", out)
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}
}

func TestSafe_PanicReturnsOriginal(t *testing.T) {
	next := TranslatorFunc(func(context.Context, string, domain.Language) (string, error) {
		panic("boom")
	})
	out, err := NewSafe(next, nil, DefaultSafeOptions()).Translate(context.Background(), "hello", domain.LangArabic)
	if err != nil || out != "hello" {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestSafe_EmptyOutputReturnsOriginal(t *testing.T) {
	next := TranslatorFunc(func(context.Context, string, domain.Language) (string, error) {
		return "   ", nil
	})
	out, _ := NewSafe(next, nil, DefaultSafeOptions()).Translate(context.Background(), "hello", domain.LangArabic)
	if out != "hello" {
		t.Errorf("got %q, want original", out)
	}
}

func TestSafe_Timeout(t *testing.T) {
	next := TranslatorFunc(func(ctx context.Context, text string, _ domain.Language) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	})
	s := NewSafe(next, nil, SafeOptions{Timeout: 20 * time.Millisecond, Retry: fn.SingleAttempt})
	start := time.Now()
	out, err := s.Translate(context.Background(), "hello", domain.LangArabic)
	if err != nil || out != "hello" {
		t.Errorf("got %q, %v", out, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not enforced")
	}
}

func TestSafe_Retry(t *testing.T) {
	attempts := 0
	next := TranslatorFunc(func(_ context.Context, text string, _ domain.Language) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	opts := SafeOptions{Timeout: time.Second, Retry: fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}}
	out, _ := NewSafe(next, nil, opts).Translate(context.Background(), "hello", domain.LangArabic)
	if out != "ok" {
		t.Errorf("got %q, want ok", out)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestSafe_SkipsBlank(t *testing.T) {
	next := &countingTranslator{}
	out, _ := NewSafe(next, nil, DefaultSafeOptions()).Translate(context.Background(), "  ", domain.LangArabic)
	if out != "  " || next.calls != 0 {
		t.Errorf("got %q after %d calls", out, next.calls)
	}
}

func TestSafe_NilNext(t *testing.T) {
	out, err := NewSafe(nil, nil, SafeOptions{}).Translate(context.Background(), "x y", domain.LangArabic)
	if err != nil || out != "x y" {
		t.Errorf("got %q, %v", out, err)
	}
}
