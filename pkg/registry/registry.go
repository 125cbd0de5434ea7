// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

func LoadRegistry(path string) (*NodeRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg NodeRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Validate checks that every expected node is declared exactly once.
func (r *NodeRegistry) Validate(expected []string) error {
	byID := make(map[string]int, len(r.Nodes))
	for _, node := range r.Nodes {
		byID[node.ID]++
	}
	for id, n := range byID {
		if n > 1 {
			return fmt.Errorf("node %q declared %d times", id, n)
		}
	}
	for _, id := range expected {
		if byID[id] == 0 {
			return fmt.Errorf("node %q missing from registry", id)
		}
	}
	return nil
}

// Find returns the spec for a node ID, or nil.
func (r *NodeRegistry) Find(id string) *NodeSpec {
	for i := range r.Nodes {
		if r.Nodes[i].ID == id {
			return &r.Nodes[i]
		}
	}
	return nil
}
