package matching

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// canonicalTeams are names that normalize to themselves and need no alias.
var canonicalTeams = []string{
	"napoli", "juventus", "inter", "milan", "roma", "lazio", "atalanta",
	"fiorentina", "torino", "bologna", "udinese", "empoli", "lecce", "monza",
	"cagliari", "genoa", "verona", "parma", "como", "venezia", "sassuolo",
	"cremonese", "pisa", "salernitana", "frosinone",
}

// builtinAliases correct transliteration artifacts and common variants.
var builtinAliases = map[string]string{
	"manchester siti":     "manchester city",
	"manchester yunayted": "manchester united",
	"yuventus":            "juventus",
	"latsio":              "lazio",
	"bolonya":             "bologna",
	"udineze":             "udinese",
	"lechche":             "lecce",
	"montsa":              "monza",
	"kalyari":             "cagliari",
	"dzhenoa":             "genoa",
	"venetsiya":           "venezia",
	"piza":                "pisa",
	"kremoneze":           "cremonese",
	"komo":                "como",
	"sassuolo calcio":     "sassuolo",
	"internazionale":      "inter",
	"inter milan":         "inter",
	"hellas verona":       "verona",
	"ellas verona":        "verona",
}

// AliasFile is the on-disk alias table.
//
//	canonical:
//	  - napoli
//	aliases:
//	  neapol: napoli
type AliasFile struct {
	Canonical []string          `yaml:"canonical"`
	Aliases   map[string]string `yaml:"aliases"`
}

// LoadAliasFile reads an alias table from a YAML file.
func LoadAliasFile(path string) (*AliasFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var file AliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %w", err)
	}

	return &file, nil
}
