// Package workflow loads engine workflow templates and binds per-job
// parameters into private copies of them.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node is one operation in the engine's pipeline graph.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Template maps node identifiers to node definitions. It is the job payload
// submitted to the engine.
type Template map[string]Node

// Clone returns a deep copy that shares no maps or slices with t. Numbers
// stay json.Number so integers wider than 53 bits survive unchanged.
func (t Template) Clone() (Template, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("workflow: clone encode: %w", err)
	}
	out, err := decodeTemplate(raw)
	if err != nil {
		return nil, fmt.Errorf("workflow: clone decode: %w", err)
	}
	return out, nil
}

func decodeTemplate(raw []byte) (Template, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out Template
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t Template) setInput(nodeID, key string, value any) error {
	node, ok := t[nodeID]
	if !ok {
		return fmt.Errorf("workflow: node %q missing", nodeID)
	}
	if node.Inputs == nil {
		node.Inputs = map[string]any{}
	}
	node.Inputs[key] = value
	t[nodeID] = node
	return nil
}

// Input returns the named input of a node, if present.
func (t Template) Input(nodeID, key string) (any, bool) {
	node, ok := t[nodeID]
	if !ok || node.Inputs == nil {
		return nil, false
	}
	v, ok := node.Inputs[key]
	return v, ok
}
