// Package knowledge holds the issue catalog and located entities the
// matcher and geo finder read from. Snapshots are immutable; a reload swaps
// the whole catalog atomically.
package knowledge

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/carfix-labs/carfix/engine/domain"
)

// IssueStore retrieves candidate issues. Empty brand or model means no
// filter on that field; matching is case-insensitive and exact.
type IssueStore interface {
	FindByBrandModel(ctx context.Context, brand, model string) ([]domain.IssueRecord, error)
}

// EntityStore lists located entities of one kind.
type EntityStore interface {
	Entities(ctx context.Context, kind domain.EntityKind) ([]domain.LocatedEntity, error)
}

// Catalog is a complete knowledge snapshot.
type Catalog struct {
	Issues       []domain.IssueRecord
	Centers      []domain.LocatedEntity
	TowOperators []domain.LocatedEntity
}

// MatchesVehicle applies the brand/model filter rule to one record.
func MatchesVehicle(rec domain.IssueRecord, brand, model string) bool {
	brand, model = strings.TrimSpace(brand), strings.TrimSpace(model)
	if brand != "" && !strings.EqualFold(rec.Brand, brand) {
		return false
	}
	if model != "" && !strings.EqualFold(rec.Model, model) {
		return false
	}
	return true
}

// Memory serves a Catalog from memory. Readers never block.
type Memory struct {
	snap atomic.Pointer[Catalog]
}

// NewMemory creates a store serving c. A nil c is an empty catalog.
func NewMemory(c *Catalog) *Memory {
	m := &Memory{}
	m.Replace(c)
	return m
}

// Replace swaps in a copy of c.
func (m *Memory) Replace(c *Catalog) {
	if c == nil {
		c = &Catalog{}
	}
	m.snap.Store(c.clone())
}

// Snapshot returns the current catalog. Callers must not modify it.
func (m *Memory) Snapshot() *Catalog {
	return m.snap.Load()
}

func (m *Memory) FindByBrandModel(_ context.Context, brand, model string) ([]domain.IssueRecord, error) {
	c := m.snap.Load()
	out := make([]domain.IssueRecord, 0, len(c.Issues))
	for _, rec := range c.Issues {
		if MatchesVehicle(rec, brand, model) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) Entities(_ context.Context, kind domain.EntityKind) ([]domain.LocatedEntity, error) {
	c := m.snap.Load()
	switch kind {
	case domain.KindCenter:
		return append([]domain.LocatedEntity(nil), c.Centers...), nil
	case domain.KindTowOperator:
		return append([]domain.LocatedEntity(nil), c.TowOperators...), nil
	}
	return nil, nil
}

func (c *Catalog) clone() *Catalog {
	out := &Catalog{
		Issues:       make([]domain.IssueRecord, len(c.Issues)),
		Centers:      withKind(c.Centers, domain.KindCenter),
		TowOperators: withKind(c.TowOperators, domain.KindTowOperator),
	}
	for i, rec := range c.Issues {
		rec.Keywords = append([]string(nil), rec.Keywords...)
		out.Issues[i] = rec
	}
	return out
}

func withKind(in []domain.LocatedEntity, kind domain.EntityKind) []domain.LocatedEntity {
	out := make([]domain.LocatedEntity, len(in))
	for i, e := range in {
		e.Kind = kind
		out[i] = e
	}
	return out
}
