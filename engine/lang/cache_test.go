package lang

import (
	"context"
	"errors"
	"testing"

	"github.com/carfix-labs/carfix/engine/domain"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (brokenCache) Set(context.Context, string, string) error    { return errors.New("down") }

func TestLRUCache(t *testing.T) {
	c, err := NewLRUCache(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss, got %v", err)
	}
	_ = c.Set(ctx, "a", "1")
	_ = c.Set(ctx, "b", "2")
	_ = c.Set(ctx, "c", "3")
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Error("oldest entry should be evicted")
	}
	if v, err := c.Get(ctx, "c"); err != nil || v != "3" {
		t.Errorf("got %q, %v", v, err)
	}
}

func TestCached_Memoizes(t *testing.T) {
	c, _ := NewLRUCache(16)
	next := &countingTranslator{}
	tr := NewCached(next, c, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := tr.Translate(ctx, "الفرامل", domain.LangEnglish)
		if err != nil || out != "translated:الفرامل" {
			t.Fatalf("got %q, %v", out, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}

	// Same text, different target is a separate entry.
	_, _ = tr.Translate(ctx, "الفرامل", domain.LangArabic)
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	c, _ := NewLRUCache(16)
	next := &countingTranslator{err: errors.New("fail")}
	tr := NewCached(next, c, nil)
	if _, err := tr.Translate(context.Background(), "x", domain.LangEnglish); err == nil {
		t.Error("expected error to propagate")
	}
	if c.Len() != 0 {
		t.Error("errors must not be cached")
	}
}

func TestCached_BrokenCacheIsMiss(t *testing.T) {
	next := &countingTranslator{}
	out, err := NewCached(next, brokenCache{}, nil).Translate(context.Background(), "x", domain.LangEnglish)
	if err != nil || out != "translated:x" {
		t.Errorf("got %q, %v", out, err)
	}
}
