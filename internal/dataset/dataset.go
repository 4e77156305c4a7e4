// Package dataset loads the JSON token/edge description the pipeline is
// built from. It is an external collaborator to the core: loading is
// ordinary file I/O, validation of the loaded edges happens in
// internal/pipeline.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultPath is the dataset location used when the CLI is run with no
// arguments.
const DefaultPath = "datasets/dataset.json"

// Token is a node in the dataset, unused beyond its id by the core.
type Token struct {
	ID     uint64 `json:"id"`
	Symbol string `json:"symbol"`
}

// Edge is a dataset edge. Only ID, From, To and Rate are consumed by the
// core; PoolID and Kind are preserved but otherwise unused.
type Edge struct {
	ID     uint64  `json:"id"`
	From   uint64  `json:"from"`
	To     uint64  `json:"to"`
	Rate   float64 `json:"rate"`
	PoolID uint64  `json:"pool_id"`
	Kind   uint8   `json:"kind"`
}

// Dataset is the top-level `{tokens, edges}` document.
type Dataset struct {
	Tokens []Token `json:"tokens"`
	Edges  []Edge  `json:"edges"`
}

// Load reads and parses a dataset from path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	var ds Dataset
	if err := json.NewDecoder(f).Decode(&ds); err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %w", path, err)
	}
	return &ds, nil
}

// LoadDefault loads the dataset from DefaultPath.
func LoadDefault() (*Dataset, error) {
	return Load(DefaultPath)
}
