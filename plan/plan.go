// Package plan handles subst.toml substitution plans: the classes a program
// defines, their method bodies, and the substitutions applied to them.
package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of a plan file.
const FileName = "subst.toml"

// Plan represents a subst.toml file.
type Plan struct {
	Project       Project        `toml:"project"`
	Build         BuildConfig    `toml:"build"`
	Classes       []Class        `toml:"class"`
	Substitutions []Substitution `toml:"substitution"`

	// Dir is the directory containing the subst.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	// Entry names the static method "run" invokes, as Class.selector.
	Entry string `toml:"entry"`
}

// BuildConfig configures how substitutions are built.
type BuildConfig struct {
	// Mode is "strict" (the default) or "relaxed".
	Mode    string `toml:"mode"`
	Workers int    `toml:"workers"`
	// Cache is the sqlite database recording builds, relative to Dir.
	Cache string `toml:"cache"`
	// Output is the artifact file written by "apply", relative to Dir.
	Output string `toml:"output"`
}

// Class declares a class with its fields and methods.
type Class struct {
	Name    string   `toml:"name"`
	Super   string   `toml:"super"`
	Fields  []Field  `toml:"field"`
	Methods []Method `toml:"method"`
}

// Field declares a field.
type Field struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	Static bool   `toml:"static"`
	Final  bool   `toml:"final"`
	Init   any    `toml:"init"`
}

// Method declares a method implemented either by an assembly body or by a
// registered native.
type Method struct {
	Selector string  `toml:"selector"`
	Static   bool    `toml:"static"`
	Returns  string  `toml:"returns"`
	Params   []Param `toml:"param"`
	Body     string  `toml:"body"`
	Native   string  `toml:"native"`
}

// Param declares a method parameter. Pragma holds the binding request when
// the method serves as a delegate.
type Param struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	Pragma string `toml:"pragma"`
}

// Substitution declares one rule. Exactly one of Field and Method names the
// accessed members (a glob); Chain lists the steps, each either "original"
// or a delegate written Class.selector.
type Substitution struct {
	Field      string   `toml:"field"`
	Method     string   `toml:"method"`
	Access     string   `toml:"access"`
	DeclaredBy string   `toml:"declared-by"`
	In         string   `toml:"in"`
	On         string   `toml:"on"`
	Chain      []string `toml:"chain"`
}

// Load parses a subst.toml file from the given directory.
func Load(dir string) (*Plan, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	p.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return p, nil
}

// Parse decodes plan text and applies defaults. Dir is left empty.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}

	// Defaults
	if p.Build.Mode == "" {
		p.Build.Mode = "strict"
	}
	if p.Build.Cache == "" {
		p.Build.Cache = filepath.Join(".subst", "cache.db")
	}
	if p.Build.Output == "" {
		name := p.Project.Name
		if name == "" {
			name = "build"
		}
		p.Build.Output = name + ".cbor"
	}
	for i := range p.Substitutions {
		s := &p.Substitutions[i]
		if s.In == "" {
			s.In = "*"
		}
		if s.On == "" {
			s.On = "*"
		}
	}

	if p.Build.Mode != "strict" && p.Build.Mode != "relaxed" {
		return nil, fmt.Errorf("build mode %q: want strict or relaxed", p.Build.Mode)
	}
	if p.Build.Workers < 0 {
		return nil, fmt.Errorf("build workers %d: must not be negative", p.Build.Workers)
	}
	return &p, nil
}

// FindAndLoad walks up from startDir to find a subst.toml file,
// then loads and returns the plan. Returns nil if no plan is found.
func FindAndLoad(startDir string) (*Plan, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CachePath returns the absolute path of the build cache.
func (p *Plan) CachePath() string {
	return p.resolve(p.Build.Cache)
}

// OutputPath returns the absolute path of the artifact file.
func (p *Plan) OutputPath() string {
	return p.resolve(p.Build.Output)
}

func (p *Plan) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}
