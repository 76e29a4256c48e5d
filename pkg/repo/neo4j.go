package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Result is the minimal interface needed from a neo4j result.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// Runner is the minimal interface needed from a neo4j session.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionFunc opens a Runner. Tests substitute it to avoid a live database.
type SessionFunc func(ctx context.Context) Runner

// DriverSessions returns a SessionFunc backed by driver.
func DriverSessions(driver neo4j.DriverWithContext) SessionFunc {
	return func(ctx context.Context) Runner {
		return &neo4jSessionAdapter{sess: driver.NewSession(ctx, neo4j.SessionConfig{})}
	}
}

// Neo4jRepo is a generic Neo4j-backed repository over nodes with one label.
type Neo4jRepo[T any] struct {
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
	session    SessionFunc
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any] func(*Neo4jRepo[T])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any](key string) Neo4jOption[T] {
	return func(r *Neo4jRepo[T]) { r.idKey = key }
}

// WithSessions replaces the session source.
func WithSessions[T any](f SessionFunc) Neo4jOption[T] {
	return func(r *Neo4jRepo[T]) { r.session = f }
}

// NewNeo4jRepo creates a repository for nodes labelled label. fromRecord
// receives records whose "n" column holds the node.
func NewNeo4jRepo[T any](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T],
) *Neo4jRepo[T] {
	r := &Neo4jRepo[T]{
		label:      Ident(label),
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	if driver != nil {
		r.session = DriverSessions(driver)
	}
	for _, o := range opts {
		o(r)
	}
	r.idKey = Ident(r.idKey)
	return r
}

// Compile-time interface check.
var _ Repository[any] = (*Neo4jRepo[any])(nil)

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the Runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Neo4jRepo[T]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher, params := r.listCypher(opts)
	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, result, r.fromRecord)
}

func (r *Neo4jRepo[T]) listCypher(opts ListOpts) (string, map[string]any) {
	var b strings.Builder
	params := map[string]any{}
	fmt.Fprintf(&b, "MATCH (n:%s)", r.label)

	keys := make([]string, 0, len(opts.Where))
	for k := range opts.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		prop := Ident(k)
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "n.%s = $w_%s", prop, prop)
		params["w_"+prop] = opts.Where[k]
	}

	b.WriteString(" RETURN n")
	if opts.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY n.%s", Ident(opts.OrderBy))
		if opts.Desc {
			b.WriteString(" DESC")
		}
	}
	if opts.Offset > 0 {
		b.WriteString(" SKIP $offset")
		params["offset"] = opts.Offset
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT $limit")
		params["limit"] = opts.Limit
	}
	return b.String(), params
}

// Upsert merges the node on its id and overwrites the mapped properties.
func (r *Neo4jRepo[T]) Upsert(ctx context.Context, entity T) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	props := r.toMap(entity)
	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props", r.label, r.idKey)
	_, err := sess.Run(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props})
	return err
}

// Collect converts every record of result with from.
func Collect[T any](ctx context.Context, result Result, from func(*neo4j.Record) (T, error)) ([]T, error) {
	items := []T{}
	for result.Next(ctx) {
		item, err := from(result.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Props returns the properties of the node in column key. Plain maps are
// accepted as well as nodes.
func Props(rec *neo4j.Record, key string) (map[string]any, error) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("repo: record has no %q column", key)
	}
	switch n := v.(type) {
	case dbtype.Node:
		return n.Props, nil
	case map[string]any:
		return n, nil
	}
	return nil, fmt.Errorf("repo: column %q is %T, not a node", key, v)
}

// Ident strips everything but ASCII letters, digits and underscores so the
// value can be spliced into Cypher as a label or property name.
func Ident(s string) string {
	b := make([]byte, 0, len(s))
	for i := range s {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b = append(b, c)
		}
	}
	return string(b)
}
