// Package seed provides the activities a session starts with.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"example.com/sitetracker/internal/domain"
)

//go:embed activities.yaml
var defaultSeed []byte

// Default returns the built-in seed collection.
func Default() ([]domain.Activity, error) {
	return Parse(defaultSeed)
}

// Load reads a seed file, or the built-in collection when path is empty.
func Load(path string) ([]domain.Activity, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML list of activities. Statuses may be given either as
// canonical values or as free text, which is classified like sheet rows.
func Parse(data []byte) ([]domain.Activity, error) {
	var activities []domain.Activity
	if err := yaml.Unmarshal(data, &activities); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i := range activities {
		if !activities[i].Status.Valid() {
			activities[i].Status = domain.ClassifyStatus(string(activities[i].Status))
		}
	}
	return domain.Dedupe(activities), nil
}
