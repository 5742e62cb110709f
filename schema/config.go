package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relq/sqlitegen/conflict"
	"github.com/relq/sqlitegen/util"
)

// GeneratorConfig is a GeneratorConfig-shaped options struct (grounded in
// the teacher's database.GeneratorConfig) holding schema generation
// policy values loaded from YAML: a default conflict-resolution name,
// whether STRICT/WITHOUT ROWID table options are permitted, whether
// row-value IN is supported, and a Compile concurrency. It only carries
// these values: no renderer in this module reads a GeneratorConfig, and
// Compile and the prefetch planner take their settings as arguments.
type GeneratorConfig struct {
	DefaultConflict    conflict.Resolution `yaml:"-"`
	DefaultConflictName string              `yaml:"default_conflict"`
	AllowStrict         bool                `yaml:"allow_strict"`
	AllowWithoutRowID    bool               `yaml:"allow_without_rowid"`
	RowValueINSupported  bool               `yaml:"row_value_in_supported"`
	CompileConcurrency   int                `yaml:"compile_concurrency"`
}

// DefaultGeneratorConfig returns a config with no default conflict clause,
// STRICT/WITHOUT ROWID both permitted, row-value IN marked supported
// (SQLite >= 3.15), and sequential (non-concurrent) compilation.
// ParseGeneratorConfig does not start from it: unset fields stay zero.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		AllowStrict:         true,
		AllowWithoutRowID:   true,
		RowValueINSupported: true,
		CompileConcurrency:  0,
	}
}

var conflictNames = map[string]conflict.Resolution{
	"":         conflict.None,
	"abort":    conflict.Abort,
	"rollback": conflict.Rollback,
	"fail":     conflict.Fail,
	"ignore":   conflict.Ignore,
	"replace":  conflict.Replace,
}

// ParseGeneratorConfig loads a GeneratorConfig from a YAML file, mirroring
// the teacher's database.ParseGeneratorConfig. A missing file yields the
// zero-value config rather than an error, matching the teacher's
// "no config file means default behavior" convention.
func ParseGeneratorConfig(configFile string) (GeneratorConfig, error) {
	if configFile == "" {
		return GeneratorConfig{}, nil
	}
	buf, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return GeneratorConfig{}, nil
		}
		return GeneratorConfig{}, fmt.Errorf("schema: reading config %q: %w", configFile, err)
	}
	return ParseGeneratorConfigString(string(buf))
}

// ParseGeneratorConfigString parses a YAML document into a GeneratorConfig.
func ParseGeneratorConfigString(yamlString string) (GeneratorConfig, error) {
	var cfg GeneratorConfig
	if yamlString == "" {
		return cfg, nil
	}
	if err := yaml.Unmarshal([]byte(yamlString), &cfg); err != nil {
		return GeneratorConfig{}, fmt.Errorf("schema: parsing generator config: %w", err)
	}
	resolution, ok := conflictNames[cfg.DefaultConflictName]
	if !ok {
		var valid []string
		for name := range util.CanonicalMapIter(conflictNames) {
			valid = append(valid, name)
		}
		return GeneratorConfig{}, fmt.Errorf("schema: unknown default_conflict %q (valid: %s)", cfg.DefaultConflictName, strings.Join(valid, ", "))
	}
	cfg.DefaultConflict = resolution
	return cfg, nil
}
