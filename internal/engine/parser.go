// internal/engine/parser.go
package engine

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Schema document parsing.
 *
 * Schemas are authored as JSON documents and linked into a plain-struct
 * graph on load. Nodes reference each other by id; nothing in the parsed
 * graph holds an embedded object cycle. ParseSchema validates the result, so
 * a successfully parsed schema is safe to evaluate.
 */

// SchemaDoc is the wire shape of an authored schema.
type SchemaDoc struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     int            `json:"version,omitempty"`
	Type        string         `json:"type"`
	EventTypes  []string       `json:"eventTypes,omitempty"`
	RootNode    string         `json:"rootNode"`
	Nodes       []NodeDoc      `json:"nodes"`
	Custom      map[string]any `json:"custom,omitempty"`
}

// NodeDoc is one graph vertex of a schema document.
type NodeDoc struct {
	ID                string    `json:"id"`
	Name              string    `json:"name,omitempty"`
	DeadEnd           bool      `json:"deadEnd,omitempty"`
	AwaitedEventTypes []string  `json:"awaitedEventTypes,omitempty"`
	Rules             []RuleDoc `json:"rules"`
}

// RuleDoc pairs a condition document with an action document.
type RuleDoc struct {
	Name      string        `json:"name,omitempty"`
	Condition *ConditionDoc `json:"condition,omitempty"`
	Action    ActionDoc     `json:"action"`
}

// ConditionDoc is one node of a condition tree document.
type ConditionDoc struct {
	Name         string          `json:"name,omitempty"`
	Operator     string          `json:"operator"`
	Logical      string          `json:"logical,omitempty"`
	Mathematical string          `json:"mathematical,omitempty"`
	Composition  string          `json:"composition,omitempty"`
	First        *OperandDoc     `json:"first,omitempty"`
	Second       *OperandDoc     `json:"second,omitempty"`
	Third        *OperandDoc     `json:"third,omitempty"`
	As           string          `json:"as,omitempty"`
	OutputTag    string          `json:"outputTag,omitempty"`
	Children     []*ConditionDoc `json:"children,omitempty"`
}

// OperandDoc describes one condition operand.
type OperandDoc struct {
	DataType string `json:"dataType,omitempty"`
	Name     string `json:"name,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// ActionDoc describes a rule action with its opaque params.
type ActionDoc struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// ParseSchema decodes, links and validates a schema document. The returned
// schema carries a fresh id; persisting it is the caller's concern.
func ParseSchema(data []byte) (*types.Schema, error) {
	var doc SchemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema document: %w: %w", err, types.ErrValidation)
	}
	return LinkSchema(&doc)
}

// LinkSchema converts a decoded document into the graph representation and
// validates it.
func LinkSchema(doc *SchemaDoc) (*types.Schema, error) {
	s := &types.Schema{
		ID:          types.NewSchemaID(),
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		Type:        types.SchemaType(doc.Type),
		RootNodeID:  types.NodeID(doc.RootNode),
		Nodes:       make(map[types.NodeID]*types.Node, len(doc.Nodes)),
		EventTypes:  toEventTypes(doc.EventTypes),
	}
	for _, nd := range doc.Nodes {
		id := types.NodeID(nd.ID)
		if _, dup := s.Nodes[id]; dup {
			return nil, fmt.Errorf("schema %q: duplicate node id %q: %w", doc.Name, nd.ID, types.ErrValidation)
		}
		node := &types.Node{
			ID:                id,
			Name:              nd.Name,
			DeadEnd:           nd.DeadEnd,
			AwaitedEventTypes: toEventTypes(nd.AwaitedEventTypes),
		}
		for _, rd := range nd.Rules {
			node.Rules = append(node.Rules, &types.Rule{
				Name:      rd.Name,
				Condition: linkCondition(rd.Condition),
				Action: &types.RuleAction{
					Type:   types.ActionType(rd.Action.Type),
					Name:   rd.Action.Name,
					Params: rd.Action.Params,
				},
			})
		}
		s.Nodes[id] = node
	}
	if err := ValidateSchema(s); err != nil {
		return nil, err
	}
	return s, nil
}

func linkCondition(doc *ConditionDoc) *types.Condition {
	if doc == nil {
		return nil
	}
	cond := &types.Condition{
		Name:         doc.Name,
		Operator:     types.OperatorType(doc.Operator),
		Logical:      types.LogicalOperator(doc.Logical),
		Mathematical: types.MathematicalOperator(doc.Mathematical),
		Composition:  types.CompositionOperator(doc.Composition),
		First:        linkOperand(doc.First),
		Second:       linkOperand(doc.Second),
		Third:        linkOperand(doc.Third),
		As:           doc.As,
		OutputTag:    doc.OutputTag,
	}
	// Composition defaults keep short documents short: a composition node
	// with no operator means And, a logical leaf with no operator means None.
	if cond.Operator == types.OperatorComposition && cond.Composition == "" {
		cond.Composition = types.CompositionAnd
	}
	if cond.Operator == types.OperatorIterate && cond.Composition == "" {
		cond.Composition = types.CompositionAnd
	}
	if cond.Operator == types.OperatorLogical && cond.Logical == "" {
		cond.Logical = types.OpNone
	}
	for _, child := range doc.Children {
		cond.Children = append(cond.Children, linkCondition(child))
	}
	return cond
}

func linkOperand(doc *OperandDoc) *types.Operand {
	if doc == nil {
		return nil
	}
	return &types.Operand{
		DataType: types.OperandDataType(doc.DataType),
		Name:     doc.Name,
		Value:    doc.Value,
	}
}

func toEventTypes(ss []string) []types.EventTypeID {
	if len(ss) == 0 {
		return nil
	}
	out := make([]types.EventTypeID, len(ss))
	for i, s := range ss {
		out[i] = types.EventTypeID(s)
	}
	return out
}
