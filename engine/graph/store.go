package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/knowledge"
	"github.com/carfix-labs/carfix/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store is a Neo4j-backed knowledge base. It implements
// knowledge.IssueStore and knowledge.EntityStore.
type Store struct {
	session repo.SessionFunc
	issues  *repo.Neo4jRepo[domain.IssueRecord]
	centers *repo.Neo4jRepo[domain.LocatedEntity]
	tows    *repo.Neo4jRepo[domain.LocatedEntity]
	logger  *slog.Logger
}

var (
	_ knowledge.IssueStore  = (*Store)(nil)
	_ knowledge.EntityStore = (*Store)(nil)
)

// New creates a Store on driver.
func New(driver neo4j.DriverWithContext, logger *slog.Logger) *Store {
	return NewWithSessions(repo.DriverSessions(driver), logger)
}

// NewWithSessions creates a Store that opens sessions through sessions.
func NewWithSessions(sessions repo.SessionFunc, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		session: sessions,
		issues: repo.NewNeo4jRepo[domain.IssueRecord](nil, labelIssue, issueToMap, issueFromRecord,
			repo.WithSessions[domain.IssueRecord](sessions)),
		centers: repo.NewNeo4jRepo[domain.LocatedEntity](nil, labelShop, entityToMap, entityFromRecord(domain.KindCenter),
			repo.WithSessions[domain.LocatedEntity](sessions)),
		tows: repo.NewNeo4jRepo[domain.LocatedEntity](nil, labelTow, entityToMap, entityFromRecord(domain.KindTowOperator),
			repo.WithSessions[domain.LocatedEntity](sessions)),
		logger: logger,
	}
}

var schema = []string{
	"CREATE CONSTRAINT issue_id IF NOT EXISTS FOR (n:Issue) REQUIRE n.id IS UNIQUE",
	"CREATE CONSTRAINT make_key IF NOT EXISTS FOR (n:Make) REQUIRE n.key IS UNIQUE",
	"CREATE CONSTRAINT model_key IF NOT EXISTS FOR (n:Model) REQUIRE n.key IS UNIQUE",
	"CREATE CONSTRAINT center_id IF NOT EXISTS FOR (n:Center) REQUIRE n.id IS UNIQUE",
	"CREATE CONSTRAINT tow_id IF NOT EXISTS FOR (n:TowOperator) REQUIRE n.id IS UNIQUE",
}

// EnsureSchema creates the uniqueness constraints. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)
	for _, cypher := range schema {
		if _, err := sess.Run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("graph: schema: %w", err)
		}
	}
	return nil
}

const findIssuesCypher = `MATCH (mk:Make)-[:HAS_MODEL]->(m:Model)<-[:AFFECTS]-(n:Issue)
WHERE ($brand = '' OR mk.key = $brand) AND ($model = '' OR n.model_key = $model)
RETURN n ORDER BY n.seq, n.id`

// FindByBrandModel returns the issues for the vehicle; empty filters match all.
func (s *Store) FindByBrandModel(ctx context.Context, brand, model string) ([]domain.IssueRecord, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, findIssuesCypher, map[string]any{"brand": key(brand), "model": key(model)})
	if err != nil {
		return nil, fmt.Errorf("graph: find issues: %w", err)
	}
	return repo.Collect(ctx, result, issueFromRecord)
}

// Entities lists centers or tow operators by id.
func (s *Store) Entities(ctx context.Context, kind domain.EntityKind) ([]domain.LocatedEntity, error) {
	var r *repo.Neo4jRepo[domain.LocatedEntity]
	switch kind {
	case domain.KindCenter:
		r = s.centers
	case domain.KindTowOperator:
		r = s.tows
	default:
		return nil, fmt.Errorf("graph: unknown entity kind %q", kind)
	}
	out, err := r.List(ctx, repo.ListOpts{OrderBy: "id"})
	if err != nil {
		return nil, fmt.Errorf("graph: list %s: %w", kind, err)
	}
	return out, nil
}

const linkIssueCypher = `MATCH (n:Issue {id: $id})
MERGE (mk:Make {key: $brand_key}) ON CREATE SET mk.name = $brand
MERGE (m:Model {key: $model_key}) ON CREATE SET m.name = $model
MERGE (mk)-[:HAS_MODEL]->(m)
MERGE (n)-[:AFFECTS]->(m)`

// sequenceIssueCypher numbers an issue the first time it is stored so
// reads can return insertion order.
const sequenceIssueCypher = `MATCH (n:Issue {id: $id}) WHERE n.seq IS NULL
OPTIONAL MATCH (o:Issue) WHERE o.seq IS NOT NULL
WITH n, coalesce(max(o.seq), 0) + 1 AS next
SET n.seq = next`

const linkSystemCypher = `MATCH (n:Issue {id: $id})
MERGE (s:System {name: $system})
MERGE (n)-[:IN_SYSTEM]->(s)`

// SaveIssue writes an issue and links it to its make, model and system.
func (s *Store) SaveIssue(ctx context.Context, rec domain.IssueRecord) error {
	if err := s.issues.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("graph: save issue %s: %w", rec.ID, err)
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	if _, err := sess.Run(ctx, linkIssueCypher, map[string]any{
		"id":        rec.ID,
		"brand":     rec.Brand,
		"brand_key": key(rec.Brand),
		"model":     rec.Model,
		"model_key": modelKey(rec.Brand, rec.Model),
	}); err != nil {
		return fmt.Errorf("graph: link issue %s: %w", rec.ID, err)
	}

	if _, err := sess.Run(ctx, sequenceIssueCypher, map[string]any{"id": rec.ID}); err != nil {
		return fmt.Errorf("graph: sequence issue %s: %w", rec.ID, err)
	}

	if system := ClassifySystem(rec.Problem, rec.Solution, rec.Keywords); system != "" {
		if _, err := sess.Run(ctx, linkSystemCypher, map[string]any{"id": rec.ID, "system": system}); err != nil {
			return fmt.Errorf("graph: link system %s: %w", rec.ID, err)
		}
	}
	return nil
}

// SaveEntity writes a center or tow operator according to its Kind.
func (s *Store) SaveEntity(ctx context.Context, e domain.LocatedEntity) error {
	r := s.centers
	if e.Kind == domain.KindTowOperator {
		r = s.tows
	}
	if err := r.Upsert(ctx, e); err != nil {
		return fmt.Errorf("graph: save %s %d: %w", e.Kind, e.ID, err)
	}
	return nil
}

// SeedStats counts what Seed wrote.
type SeedStats struct {
	Issues   int
	Entities int
}

// Seed writes every issue and entity of c. Records are merged on id, so
// seeding twice is harmless.
func (s *Store) Seed(ctx context.Context, c *knowledge.Catalog) (SeedStats, error) {
	var st SeedStats
	if err := s.EnsureSchema(ctx); err != nil {
		return st, err
	}
	for _, rec := range c.Issues {
		if err := s.SaveIssue(ctx, rec); err != nil {
			return st, err
		}
		st.Issues++
	}
	groups := map[domain.EntityKind][]domain.LocatedEntity{
		domain.KindCenter:      c.Centers,
		domain.KindTowOperator: c.TowOperators,
	}
	for _, kind := range []domain.EntityKind{domain.KindCenter, domain.KindTowOperator} {
		for _, e := range groups[kind] {
			e.Kind = kind
			if err := s.SaveEntity(ctx, e); err != nil {
				return st, err
			}
			st.Entities++
		}
	}
	s.logger.Info("graph seeded", "issues", st.Issues, "entities", st.Entities)
	return st, nil
}
