package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/keywords"
)

//go:embed seed.yaml
var seedYAML []byte

// ErrInvalidCatalog is returned when a catalog file fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// keywordList accepts either a YAML sequence or a comma-joined string.
type keywordList []string

func (k *keywordList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*k = strings.Split(node.Value, ",")
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*k = list
		return nil
	}
	return fmt.Errorf("keywords: unexpected YAML node kind %d at line %d", node.Kind, node.Line)
}

type fileIssue struct {
	ID       string      `yaml:"id"`
	Brand    string      `yaml:"brand"`
	Model    string      `yaml:"model"`
	Problem  string      `yaml:"problem"`
	Solution string      `yaml:"solution"`
	Keywords keywordList `yaml:"keywords"`
}

type fileCatalog struct {
	Issues       []fileIssue            `yaml:"issues"`
	Centers      []domain.LocatedEntity `yaml:"centers"`
	TowOperators []domain.LocatedEntity `yaml:"tow_operators"`
}

// Parse decodes and validates a YAML catalog. Keywords are normalized and
// issues without an id get one derived from brand, model and position.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("knowledge: parse: %w", err)
	}

	c := &Catalog{Centers: fc.Centers, TowOperators: fc.TowOperators}
	for i, fi := range fc.Issues {
		rec := domain.IssueRecord{
			ID:       strings.TrimSpace(fi.ID),
			Brand:    strings.TrimSpace(fi.Brand),
			Model:    strings.TrimSpace(fi.Model),
			Problem:  strings.TrimSpace(fi.Problem),
			Solution: strings.TrimSpace(fi.Solution),
			Keywords: keywords.NormalizeAll(fi.Keywords),
		}
		if rec.ID == "" {
			rec.ID = issueID(rec, i)
		}
		if rec.Problem == "" || rec.Solution == "" {
			return nil, fmt.Errorf("knowledge: issue %q: %w: problem and solution are required", rec.ID, ErrInvalidCatalog)
		}
		c.Issues = append(c.Issues, rec)
	}
	if err := validateEntities(c.Centers, "centers"); err != nil {
		return nil, err
	}
	if err := validateEntities(c.TowOperators, "tow_operators"); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read %s: %w", path, err)
	}
	return Parse(data)
}

// Seed returns the built-in catalog.
func Seed() (*Catalog, error) {
	return Parse(seedYAML)
}

func validateEntities(es []domain.LocatedEntity, section string) error {
	seen := make(map[int64]bool, len(es))
	for _, e := range es {
		if seen[e.ID] {
			return fmt.Errorf("knowledge: %s: duplicate id %d: %w", section, e.ID, ErrInvalidCatalog)
		}
		seen[e.ID] = true
		if err := domain.ValidateCoordinates(e.Latitude, e.Longitude); err != nil {
			return fmt.Errorf("knowledge: %s: %q: %w", section, e.Name, err)
		}
	}
	return nil
}

func issueID(rec domain.IssueRecord, i int) string {
	slug := strings.ToLower(rec.Brand + "-" + rec.Model)
	slug = strings.Join(strings.Fields(slug), "-")
	return fmt.Sprintf("%s-%d", slug, i+1)
}
