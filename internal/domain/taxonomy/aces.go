package taxonomy

import (
	_ "embed"
	"fmt"
)

// ACESName is the registry name of the built-in default tree.
const ACESName = "aces"

//go:embed aces.yaml
var acesYAML []byte

// ACES parses the built-in default tree. It carries no embeddings.
func ACES() (*Taxonomy, error) {
	t, err := ParseNested(ACESName, acesYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin taxonomy: %w", err)
	}
	return t, nil
}
