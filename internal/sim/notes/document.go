package notes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"monkeysim.dev/internal/sim/troop"
)

// Document is the structured (JSON/YAML) form of the notes.
type Document struct {
	Monkeys []MonkeyDoc `json:"monkeys" yaml:"monkeys"`
}

type MonkeyDoc struct {
	Items     []int64 `json:"items" yaml:"items"`
	Operation string  `json:"operation" yaml:"operation"`
	Divisor   int64   `json:"divisor" yaml:"divisor"`
	IfTrue    int     `json:"if_true" yaml:"if_true"`
	IfFalse   int     `json:"if_false" yaml:"if_false"`
}

//go:embed troop.schema.json
var troopSchemaJSON string

var (
	troopSchemaOnce sync.Once
	troopSchema     *jsonschema.Schema
	troopSchemaErr  error
)

func schema() (*jsonschema.Schema, error) {
	troopSchemaOnce.Do(func() {
		troopSchema, troopSchemaErr = jsonschema.CompileString("troop.schema.json", troopSchemaJSON)
	})
	return troopSchema, troopSchemaErr
}

// DecodeJSON validates b against the troop schema before decoding it.
func DecodeJSON(b []byte) ([]troop.MonkeyDef, error) {
	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("troop schema: %w", err)
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if err := s.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return doc.Defs()
}

func DecodeYAML(b []byte) ([]troop.MonkeyDef, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return doc.Defs()
}

func (d Document) Defs() ([]troop.MonkeyDef, error) {
	if len(d.Monkeys) == 0 {
		return nil, fmt.Errorf("%w: no monkeys", ErrSyntax)
	}
	defs := make([]troop.MonkeyDef, 0, len(d.Monkeys))
	for i, m := range d.Monkeys {
		op, err := troop.ParseOperation(m.Operation)
		if err != nil {
			return nil, fmt.Errorf("monkey %d: %w", i, err)
		}
		defs = append(defs, troop.MonkeyDef{
			Items:     m.Items,
			Operation: op,
			Test:      troop.Test{Divisor: m.Divisor, IfTrue: m.IfTrue, IfFalse: m.IfFalse},
		})
	}
	return defs, nil
}

// FromDefs is the inverse of Defs.
func FromDefs(defs []troop.MonkeyDef) Document {
	doc := Document{Monkeys: make([]MonkeyDoc, 0, len(defs))}
	for _, d := range defs {
		doc.Monkeys = append(doc.Monkeys, MonkeyDoc{
			Items:     append([]int64{}, d.Items...),
			Operation: d.Operation.String(),
			Divisor:   d.Test.Divisor,
			IfTrue:    d.Test.IfTrue,
			IfFalse:   d.Test.IfFalse,
		})
	}
	return doc
}
