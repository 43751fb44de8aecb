package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/quarry/schema/field"
)

// Parse builds a catalog from its YAML description:
//
//	entities:
//	  User:
//	    table: users
//	    mixins: [time]
//	    primary_key: id
//	    fields:
//	      - {name: id, type: int64}
//	      - {name: email, db_type: VARCHAR(255)}
//	    aliases:
//	      login: email
//	    relations:
//	      - alias: Posts
//	        type: Post
//	        local: id
//	        foreign: author_id
//	        cardinality: many
//	        foreign_criteria:
//	          published: true
func Parse(data []byte) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode catalog: %w", err)
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("schema: catalog declares no entities")
	}
	entities := make([]*Entity, 0, len(doc.Entities))
	for name, spec := range doc.Entities {
		e, err := spec.entity(name)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return NewCatalog(entities...)
}

// LoadFile reads and parses the catalog stored at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read catalog: %w", err)
	}
	return Parse(data)
}

type (
	catalogFile struct {
		Entities map[string]entityFile `yaml:"entities"`
	}
	entityFile struct {
		Table      string            `yaml:"table"`
		PrimaryKey stringList        `yaml:"primary_key"`
		Fields     []fieldFile       `yaml:"fields"`
		Aliases    map[string]string `yaml:"aliases"`
		Relations  []relationFile    `yaml:"relations"`
		Mixins     []string          `yaml:"mixins"`
	}
	fieldFile struct {
		Name     string `yaml:"name"`
		Type     string `yaml:"type"`
		DBType   string `yaml:"db_type"`
		Nullable bool   `yaml:"nullable"`
		Default  any    `yaml:"default"`
	}
	relationFile struct {
		Alias           string       `yaml:"alias"`
		Type            string       `yaml:"type"`
		Local           string       `yaml:"local"`
		Foreign         string       `yaml:"foreign"`
		Cardinality     string       `yaml:"cardinality"`
		LocalCriteria   criteriaList `yaml:"local_criteria"`
		ForeignCriteria criteriaList `yaml:"foreign_criteria"`
	}
)

func (s entityFile) entity(name string) (*Entity, error) {
	e := &Entity{
		Name:       name,
		Table:      s.Table,
		PrimaryKey: s.PrimaryKey,
		Aliases:    s.Aliases,
	}
	for _, mx := range s.Mixins {
		m, ok := LookupMixin(mx)
		if !ok {
			return nil, fmt.Errorf("schema: %s: unknown mixin %q", name, mx)
		}
		e.Mixins = append(e.Mixins, m)
	}
	for _, f := range s.Fields {
		typ := field.ParseType(f.Type)
		if f.Type != "" && typ == field.TypeInvalid {
			return nil, fmt.Errorf("schema: %s.%s: unknown field type %q", name, f.Name, f.Type)
		}
		e.Fields = append(e.Fields, &Field{
			Name:         f.Name,
			PhysicalType: f.DBType,
			Type:         typ,
			Nullable:     f.Nullable,
			Default:      f.Default,
		})
	}
	for _, r := range s.Relations {
		var card Cardinality
		switch strings.ToLower(r.Cardinality) {
		case "", "one":
			card = One
		case "many":
			card = Many
		default:
			return nil, fmt.Errorf("schema: %s.%s: unknown cardinality %q", name, r.Alias, r.Cardinality)
		}
		e.Relations = append(e.Relations, &Relation{
			Alias:           r.Alias,
			Type:            r.Type,
			Local:           r.Local,
			Foreign:         r.Foreign,
			Cardinality:     card,
			LocalCriteria:   r.LocalCriteria,
			ForeignCriteria: r.ForeignCriteria,
		})
	}
	return e, nil
}

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*l = stringList{n.Value}
		return nil
	}
	var s []string
	if err := n.Decode(&s); err != nil {
		return err
	}
	*l = s
	return nil
}

// criteriaList keeps relation criteria in document order. A mapping yields
// keyed criteria; a sequence may mix raw SQL strings and mappings.
type criteriaList []Criterion

func (l *criteriaList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			var v any
			if err := n.Content[i+1].Decode(&v); err != nil {
				return err
			}
			*l = append(*l, Criterion{Key: n.Content[i].Value, Value: v})
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode {
				*l = append(*l, Criterion{Value: item.Value})
				continue
			}
			if err := l.UnmarshalYAML(item); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if n.Value != "" {
			*l = append(*l, Criterion{Value: n.Value})
		}
	default:
		return fmt.Errorf("schema: line %d: unexpected criteria node", n.Line)
	}
	return nil
}
