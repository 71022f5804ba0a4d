// Package pattern loads and indexes the stylistic pattern registry.
//
// Definitions live as YAML files under a patterns directory. Files whose
// names start with "_" hold auxiliary configuration (category weights) and
// the models/ subdirectory holds expected-score profiles; neither is a
// pattern definition. A load failure is fatal: a malformed pattern must
// abort before any scanning occurs.
package pattern

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/carteakey/aidar/internal/model"
)

// ConfigError marks a fatal registry configuration problem: schema
// violation, duplicate id, inconsistent thresholds, or an uncompilable
// regex. Callers must abort scanning when one is returned.
type ConfigError struct {
	Source string // file the bad definition came from, when known
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source != "" {
		return e.Source + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load walks dir for *.yaml / *.yml pattern definitions and returns an
// immutable Snapshot. It returns a *ConfigError on any invalid definition.
func Load(dir string) (*Snapshot, error) {
	modelsDir := filepath.Join(dir, "models")

	var defs []model.PatternDefinition
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if d.IsDir() {
			// Model profiles are not pattern definitions.
			if path == modelsDir {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if strings.HasPrefix(d.Name(), "_") {
			return nil
		}

		def, perr := parseFile(path)
		if perr != nil {
			return perr
		}
		defs = append(defs, *def)
		return nil
	})
	if err != nil {
		var ce *ConfigError
		if eris.As(err, &ce) {
			return nil, ce
		}
		return nil, eris.Wrapf(err, "pattern: walk %s", dir)
	}

	return newSnapshot(defs)
}

func parseFile(path string) (*model.PatternDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pattern: read %s", path)
	}

	def := model.PatternDefinition{
		Version:  1,
		Severity: model.SeverityMedium,
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &ConfigError{Source: path, Err: eris.Wrap(err, "parse yaml")}
	}
	if err := def.Validate(); err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	// Regexes must compile at load time so a bad expression can never
	// degrade a scan later.
	if def.DetectionType == model.DetectRegex {
		for _, expr := range def.Params.Patterns {
			if _, rerr := regexp.Compile("(?i)" + expr); rerr != nil {
				return nil, &ConfigError{Source: path, Err: eris.Wrapf(rerr, "pattern %q: compile %q", def.ID, expr)}
			}
		}
	}
	return &def, nil
}

// Weights maps categories to their relative weight in the final index.
// A nil/empty Weights means equal weighting across firing categories.
type Weights map[model.Category]float64

// LoadWeights reads the optional _weights.yaml from dir. A missing file
// yields nil (equal weighting).
func LoadWeights(dir string) (Weights, error) {
	path := filepath.Join(dir, "_weights.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "pattern: read weights")
	}

	var doc struct {
		Weights map[string]float64 `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Source: path, Err: eris.Wrap(err, "parse yaml")}
	}

	w := make(Weights, len(doc.Weights))
	for k, v := range doc.Weights {
		c := model.Category(k)
		if !validCategory(c) {
			return nil, &ConfigError{Source: path, Err: eris.Errorf("unknown category %q", k)}
		}
		if v < 0 {
			return nil, &ConfigError{Source: path, Err: eris.Errorf("weight for %q must be >= 0", k)}
		}
		w[c] = v
	}
	return w, nil
}

// LoadModelProfile reads models/<name>.yaml: a mapping of pattern id to the
// normalized score that model family typically produces.
func LoadModelProfile(dir, name string) (map[string]float64, error) {
	path := filepath.Join(dir, "models", name+".yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		available := availableProfiles(dir)
		return nil, eris.Errorf("pattern: model profile %q not found (available: %s)",
			name, strings.Join(available, ", "))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pattern: read profile %s", name)
	}

	var doc struct {
		Profile map[string]float64 `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Source: path, Err: eris.Wrap(err, "parse yaml")}
	}
	return doc.Profile, nil
}

func availableProfiles(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(dir, "models"))
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(names)
	return names
}

func validCategory(c model.Category) bool {
	for _, known := range model.Categories {
		if c == known {
			return true
		}
	}
	return false
}
