package content

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// LoadPlaybook reads and parses a single playbook bank file.
func LoadPlaybook(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}

	var pb Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("parse playbook %s: %w", path, err)
	}

	return &pb, nil
}

// LoadIndex loads the given playbook files in order and builds an Index
// over their concatenation. Pass a nil source for time-seeded randomness.
func LoadIndex(paths []string, src rand.Source) (*Index, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no playbook files configured: %w", ErrEmptyBank)
	}

	playbooks := make([]Playbook, 0, len(paths))
	for _, p := range paths {
		pb, err := LoadPlaybook(p)
		if err != nil {
			return nil, err
		}
		playbooks = append(playbooks, *pb)
	}

	return NewIndex(playbooks, src)
}
