package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlan(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, `
[project]
name = "test-app"
version = "0.1.0"
entry = "Main.main"

[build]
mode = "relaxed"
workers = 3
cache = "cache/builds.db"
output = "out/app.cbor"

[[class]]
name = "Sample"
super = "Object"

  [[class.field]]
  name = "count"
  type = "int"
  static = true
  init = 4

  [[class.method]]
  selector = "bump:"
  returns = "int"
  body = "push_temp 0\nreturn_top"

    [[class.method.param]]
    name = "n"
    type = "int"
    pragma = "argument: 0"

[[substitution]]
field = "count"
access = "write"
declared-by = "Sample"
on = "bump*"
chain = ["original", "Sample.bump:"]
`)

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if p.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", p.Project.Name)
	}
	if p.Project.Entry != "Main.main" {
		t.Errorf("project entry = %q, want Main.main", p.Project.Entry)
	}
	if p.Build.Mode != "relaxed" || p.Build.Workers != 3 {
		t.Errorf("build = %+v, want relaxed with 3 workers", p.Build)
	}
	if got, want := p.CachePath(), filepath.Join(p.Dir, "cache", "builds.db"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
	if got, want := p.OutputPath(), filepath.Join(p.Dir, "out", "app.cbor"); got != want {
		t.Errorf("output path = %q, want %q", got, want)
	}
	if len(p.Classes) != 1 {
		t.Fatalf("classes count = %d, want 1", len(p.Classes))
	}
	c := p.Classes[0]
	if len(c.Fields) != 1 || c.Fields[0].Init != int64(4) || !c.Fields[0].Static {
		t.Errorf("fields = %+v, want static count = 4", c.Fields)
	}
	if len(c.Methods) != 1 || len(c.Methods[0].Params) != 1 || c.Methods[0].Params[0].Pragma != "argument: 0" {
		t.Errorf("methods = %+v, want bump: with one pragma param", c.Methods)
	}
	if len(p.Substitutions) != 1 {
		t.Fatalf("substitutions count = %d, want 1", len(p.Substitutions))
	}
	s := p.Substitutions[0]
	if s.Field != "count" || s.Access != "write" || s.DeclaredBy != "Sample" || s.On != "bump*" || s.In != "*" {
		t.Errorf("substitution = %+v", s)
	}
	if len(s.Chain) != 2 || s.Chain[0] != "original" {
		t.Errorf("chain = %v, want [original Sample.bump:]", s.Chain)
	}
}

func TestLoadPlanDefaults(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, `
[project]
name = "minimal"
`)

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Build.Mode != "strict" {
		t.Errorf("build mode = %q, want strict", p.Build.Mode)
	}
	if p.Build.Workers != 0 {
		t.Errorf("build workers = %d, want 0", p.Build.Workers)
	}
	if got, want := p.CachePath(), filepath.Join(p.Dir, ".subst", "cache.db"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
	if got, want := p.OutputPath(), filepath.Join(p.Dir, "minimal.cbor"); got != want {
		t.Errorf("output path = %q, want %q", got, want)
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"syntax", "[project", ""},
		{"unknown key", "[project]\ncolour = \"red\"", "unknown key project.colour"},
		{"mode", "[build]\nmode = \"lenient\"", "want strict or relaxed"},
		{"workers", "[build]\nworkers = -1", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of an empty directory succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writePlan(t, root, `
[project]
name = "root-project"
`)

	// Create a nested subdirectory
	sub := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	p, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if p == nil {
		t.Fatal("FindAndLoad returned nil, expected plan")
	}
	if p.Project.Name != "root-project" {
		t.Errorf("project name = %q, want root-project", p.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	p, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if p != nil {
		t.Errorf("FindAndLoad = %+v, want nil", p)
	}
}
