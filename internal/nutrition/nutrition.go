// Package nutrition provides the food nutrition lookup table and label
// canonicalization used to enrich detections. Both operations are pure:
// the table is embedded in the binary and never mutated after init.
package nutrition

import (
	_ "embed" // Embedding the nutrition table into the binary.
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/nutrition.yaml
var nutritionData []byte

// Facts holds the per-serving nutrition facts for a canonical food label.
type Facts struct {
	Calories float64 `yaml:"calories" json:"calories"`
	Protein  float64 `yaml:"protein" json:"protein"`
	Fats     float64 `yaml:"fats" json:"fats"`
}

var table map[string]Facts

// Detection model class names do not always match the table keys, map
// known aliases to their canonical labels.
var synonyms = map[string]string{
	"burger":         "burger_beef",
	"beef_burger":    "burger_beef",
	"chicken_burger": "burger_chicken",
	"fries":          "french_fries",
	"chips":          "french_fries",
	"chow_mein":      "chow_mein",
	"boiled_egg":     "boiled_egg",
	"doughnut":       "donut",
}

func init() {
	table = make(map[string]Facts)
	if err := yaml.Unmarshal(nutritionData, &table); err != nil {
		// The table is a build artifact, failing to parse it is a
		// packaging bug and not recoverable at runtime.
		panic(fmt.Sprintf("nutrition: failed to parse embedded table: %v", err))
	}
}

// Canonicalize normalizes a raw detection label to a nutrition table key.
// It is idempotent: applying it twice yields the same result.
func Canonicalize(raw string) string {
	if raw == "" {
		return raw
	}
	n := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(raw)), " ", "_")
	if canonical, ok := synonyms[n]; ok {
		return canonical
	}
	return n
}

// Lookup returns the nutrition facts for a canonical label. The second
// return value is false when the label has no table entry.
func Lookup(canonical string) (Facts, bool) {
	facts, ok := table[canonical]
	return facts, ok
}

// Labels returns the canonical labels present in the table.
func Labels() []string {
	labels := make([]string, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	return labels
}
