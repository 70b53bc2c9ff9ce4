// internal/engine/parser_test.go
package engine

import (
	"errors"
	"testing"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

const checkinSchemaDoc = `{
	"name": "daily-checkin-streak",
	"type": "ReuseExistingInstance",
	"eventTypes": ["daily-checkin"],
	"rootNode": "start",
	"nodes": [
		{
			"id": "start",
			"rules": [
				{
					"name": "enough-steps",
					"condition": {
						"operator": "Logical",
						"logical": "GreaterThanOrEqual",
						"first": {"name": "steps", "dataType": "Float"},
						"second": {"value": 8000}
					},
					"action": {
						"type": "ExecuteNext",
						"params": {"NextNodeId": "award"}
					}
				}
			]
		},
		{
			"id": "award",
			"rules": [
				{
					"name": "grant",
					"condition": {"operator": "Composition"},
					"action": {
						"type": "AwardPoints",
						"params": {"RewardPointsCategory": "wellness", "Points": 10}
					}
				}
			]
		}
	]
}`

func TestParseSchema(t *testing.T) {
	schema, err := ParseSchema([]byte(checkinSchemaDoc))
	if err != nil {
		t.Fatalf("ParseSchema() error = %v, want nil", err)
	}
	if schema.ID == "" {
		t.Errorf("schema id not minted")
	}
	if schema.Type != types.ReuseExistingInstance {
		t.Errorf("Type = %v, want ReuseExistingInstance", schema.Type)
	}
	if schema.RootNodeID != "start" {
		t.Errorf("RootNodeID = %v, want start", schema.RootNodeID)
	}
	if len(schema.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(schema.Nodes))
	}
	if !schema.Subscribed("daily-checkin") {
		t.Errorf("schema not subscribed to daily-checkin")
	}
	if schema.Subscribed("other-event") {
		t.Errorf("schema subscribed to other-event, want subscription filter")
	}

	// Composition with no operator defaults to And.
	award := schema.Node("award")
	if got := award.Rules[0].Condition.Composition; got != types.CompositionAnd {
		t.Errorf("default composition = %v, want And", got)
	}
}

func TestParseSchema_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"unknown schema type", `{"name":"x","type":"Sometimes","rootNode":"a","nodes":[{"id":"a","rules":[]}]}`},
		{"missing root node", `{"name":"x","type":"ExecuteOnce","rootNode":"missing","nodes":[{"id":"a","rules":[]}]}`},
		{"duplicate node id", `{"name":"x","type":"ExecuteOnce","rootNode":"a","nodes":[{"id":"a","rules":[]},{"id":"a","rules":[]}]}`},
		{"dangling next node", `{"name":"x","type":"ExecuteOnce","rootNode":"a","nodes":[{"id":"a","rules":[{"action":{"type":"ExecuteNext","params":{"NextNodeId":"nowhere"}}}]}]}`},
		{"unknown action type", `{"name":"x","type":"ExecuteOnce","rootNode":"a","nodes":[{"id":"a","rules":[{"action":{"type":"Teleport"}}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.doc))
			if !errors.Is(err, types.ErrValidation) {
				t.Errorf("ParseSchema() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestParseSchema_LogicalLeafDefaultsToNone(t *testing.T) {
	doc := `{"name":"x","type":"ExecuteOnce","rootNode":"a","nodes":[
		{"id":"a","rules":[{"condition":{"operator":"Logical"},"action":{"type":"Exit"}}]}
	]}`
	schema, err := ParseSchema([]byte(doc))
	if err != nil {
		t.Fatalf("ParseSchema() error = %v, want nil", err)
	}
	cond := schema.Node("a").Rules[0].Condition
	if cond.Logical != types.OpNone {
		t.Errorf("default logical operator = %v, want None", cond.Logical)
	}
}
