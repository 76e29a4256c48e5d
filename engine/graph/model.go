// Package graph stores the knowledge base in Neo4j.
//
// Schema:
//
//	(:Make {key, name})-[:HAS_MODEL]->(:Model {key, name})<-[:AFFECTS]-(:Issue)
//	(:Issue)-[:IN_SYSTEM]->(:System {name})
//	(:Center), (:TowOperator)
//
// Keys are lower-cased names so brand/model filters are case-insensitive.
package graph

import (
	"fmt"
	"strings"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	labelIssue = "Issue"
	labelTow   = "TowOperator"
	labelShop  = "Center"
)

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func modelKey(brand, model string) string { return key(brand) + "/" + key(model) }

func issueToMap(rec domain.IssueRecord) map[string]any {
	return map[string]any{
		"id":        rec.ID,
		"brand":     rec.Brand,
		"model":     rec.Model,
		"brand_key": key(rec.Brand),
		"model_key": key(rec.Model),
		"problem":   rec.Problem,
		"solution":  rec.Solution,
		"keywords":  append([]string(nil), rec.Keywords...),
	}
}

func issueFromRecord(rec *neo4j.Record) (domain.IssueRecord, error) {
	props, err := repo.Props(rec, "n")
	if err != nil {
		return domain.IssueRecord{}, err
	}
	return domain.IssueRecord{
		ID:       strProp(props, "id"),
		Brand:    strProp(props, "brand"),
		Model:    strProp(props, "model"),
		Problem:  strProp(props, "problem"),
		Solution: strProp(props, "solution"),
		Keywords: strListProp(props, "keywords"),
	}, nil
}

func entityToMap(e domain.LocatedEntity) map[string]any {
	return map[string]any{
		"id":        e.ID,
		"name":      e.Name,
		"latitude":  e.Latitude,
		"longitude": e.Longitude,
		"phone":     e.Phone,
		"address":   e.Address,
		"rating":    e.Rating,
	}
}

func entityFromRecord(kind domain.EntityKind) func(*neo4j.Record) (domain.LocatedEntity, error) {
	return func(rec *neo4j.Record) (domain.LocatedEntity, error) {
		props, err := repo.Props(rec, "n")
		if err != nil {
			return domain.LocatedEntity{}, err
		}
		id, ok := props["id"].(int64)
		if !ok {
			return domain.LocatedEntity{}, fmt.Errorf("graph: %s id is %T", kind, props["id"])
		}
		return domain.LocatedEntity{
			ID:        id,
			Name:      strProp(props, "name"),
			Latitude:  floatProp(props, "latitude"),
			Longitude: floatProp(props, "longitude"),
			Phone:     strProp(props, "phone"),
			Address:   strProp(props, "address"),
			Rating:    floatProp(props, "rating"),
			Kind:      kind,
		}, nil
	}
}

func strProp(props map[string]any, k string) string {
	s, _ := props[k].(string)
	return s
}

func floatProp(props map[string]any, k string) float64 {
	switch v := props[k].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// strListProp reads a list property; the driver returns lists as []any.
func strListProp(props map[string]any, k string) []string {
	switch v := props[k].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
