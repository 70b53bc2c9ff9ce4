// Package types provides domain models shared across MeritKeeper components.
//
// Zero-dependency design for the model files: enums, graph structs and error
// kinds use only the standard library plus the JSON codec so engine packages
// can depend on them without pulling in drivers. ID utilities in ids.go import
// uuid but are isolated for selective inclusion.
package types

import "github.com/goccy/go-json"

// Payload is the opaque JSON body of an incoming event.
// json.RawMessage wrapper preserves original bytes for schema-agnostic
// storage; the condition evaluator operates on the decoded fact bag, never on
// payload structure assumptions.
type Payload json.RawMessage

// MarshalJSON implements json.Marshaler.
// Delegates to json.RawMessage to preserve original payload bytes unchanged.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return json.RawMessage(p).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
// Delegates to json.RawMessage to capture raw bytes without parsing.
func (p *Payload) UnmarshalJSON(data []byte) error {
	return (*json.RawMessage)(p).UnmarshalJSON(data)
}

// Decode unmarshals the payload into a generic map for fact resolution.
// A nil or empty payload decodes to an empty map rather than an error so
// events without a body still drive Exists-style conditions.
func (p Payload) Decode() (map[string]any, error) {
	if len(p) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Resource limits enforced by the engine to keep evaluation cost bounded.
const (
	// MaxPayloadSize limits event payload size at ingestion.
	// 1MB allows typical application events; larger payloads belong in
	// external storage referenced from the payload.
	MaxPayloadSize = 1024 * 1024

	// MaxConditionDepth prevents stack overflow during recursive condition
	// evaluation of hostile or mis-authored trees.
	MaxConditionDepth = 32

	// MaxChainHops bounds ExecuteNext chains within one evaluation cycle so a
	// cyclic graph cannot spin the dispatcher forever.
	MaxChainHops = 32

	// MaxRulesPerNode bounds the ordered rule list of a node. Authoring-time
	// limit; evaluation is linear in rule count.
	MaxRulesPerNode = 64

	// DefaultRedemptionExpiryDays is the reward-point redemption window
	// applied when a storage key does not supply RedemptionExpiryInDays.
	DefaultRedemptionExpiryDays = 180
)
