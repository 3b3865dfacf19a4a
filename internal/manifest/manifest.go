// Package manifest describes which template files a sync run distributes
// and where they land inside each target repository.
package manifest

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Known file types and the destination they default to inside a target.
// The order here is the order mappings are applied in.
var knownTypes = []struct {
	name string
	dest string
}{
	{"gitignore", ".gitignore"},
	{"gitattributes", ".gitattributes"},
	{"editorconfig", ".editorconfig"},
	{"clang-format", ".clang-format"},
}

// WorkflowDir is where single-file syncs land inside a target repository.
const WorkflowDir = ".github/workflows"

// Mapping is one resolved (source, dest) file pair. Source is relative
// to the source repository root, Dest to the target repository root.
type Mapping struct {
	Source string
	Dest   string
}

// FileRule configures one known file type.
type FileRule struct {
	Enabled *bool  `yaml:"enabled"` // nil means enabled
	Source  string `yaml:"source"`  // source filename override
	Dest    string `yaml:"dest"`    // destination override
}

// ExtraPair is a freeform local:remote file pair.
type ExtraPair struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
}

// Manifest mirrors the configuration surface of the CI sync workflow:
// per-file-type enablement, source filename overrides, and extra pairs.
type Manifest struct {
	Source  string              `yaml:"source"`
	Targets []string            `yaml:"targets"`
	Files   map[string]FileRule `yaml:"files"`
	Extra   []ExtraPair         `yaml:"extra"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for name := range m.Files {
		if !isKnownType(name) {
			return nil, fmt.Errorf("unknown file type %q in manifest", name)
		}
	}

	for _, pair := range m.Extra {
		if pair.Local == "" || pair.Remote == "" {
			return nil, fmt.Errorf("extra pair must set both local and remote")
		}
	}

	return &m, nil
}

// Default builds a manifest equivalent to a plain single-file
// invocation: copy one named file into the workflow directory.
func Default(file string) *Manifest {
	return &Manifest{
		Extra: []ExtraPair{{Local: file, Remote: path.Join(WorkflowDir, file)}},
	}
}

// Mappings resolves the enabled rules into ordered file pairs: known
// file types first, in declaration order, then the extra pairs.
func (m *Manifest) Mappings() []Mapping {
	var mappings []Mapping

	for _, ft := range knownTypes {
		rule, ok := m.Files[ft.name]
		if !ok {
			continue
		}

		if rule.Enabled != nil && !*rule.Enabled {
			continue
		}

		mapping := Mapping{Source: rule.Source, Dest: rule.Dest}
		if mapping.Dest == "" {
			mapping.Dest = ft.dest
		}

		if mapping.Source == "" {
			mapping.Source = ft.dest
		}

		mappings = append(mappings, mapping)
	}

	for _, pair := range m.Extra {
		mappings = append(mappings, Mapping{Source: pair.Local, Dest: pair.Remote})
	}

	return mappings
}

func isKnownType(name string) bool {
	for _, ft := range knownTypes {
		if ft.name == name {
			return true
		}
	}

	return false
}
