package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestForVariant(t *testing.T) {
	tests := []struct {
		variant Variant
		want    Config
	}{
		{Flat, Config{
			EntryPoints: []string{"main.js", "renderer.js", "preload.js", "index.html"},
			Platform:    "node",
			Bundle:      true,
			Target:      "node16.5.0",
		}},
		{Nested, Config{
			EntryPoints: []string{"src/main.js", "src/renderer.js", "src/preload.js", "src/index.html"},
			Platform:    "node",
			Bundle:      true,
			Target:      "node16.5.0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.variant.Name, func(t *testing.T) {
			got := ForVariant(tt.variant)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ForVariant mismatch (-want +got):\n%s", diff)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("canonical config invalid: %v", err)
			}
		})
	}
}

func TestCheckParity(t *testing.T) {
	flat, nested := ForVariant(Flat), ForVariant(Nested)
	if err := CheckParity(flat, nested); err != nil {
		t.Fatalf("canonical variants diverge: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"target", func(c *Config) { c.Target = "node18" }, "target differs"},
		{"platform", func(c *Config) { c.Platform = "browser" }, "platform differs"},
		{"bundle", func(c *Config) { c.Bundle = false }, "bundle differs"},
		{"outdir", func(c *Config) { c.Outdir = "out" }, "outdir differs"},
		{"entry order", func(c *Config) {
			c.EntryPoints[0], c.EntryPoints[1] = c.EntryPoints[1], c.EntryPoints[0]
		}, "entry points differ"},
		{"mixed roots", func(c *Config) { c.EntryPoints[0] = "lib/main.js" }, "outside source root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diverged := ForVariant(Nested)
			tt.mutate(&diverged)
			err := CheckParity(flat, diverged)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown platform", func(c *Config) { c.Platform = "electron" }, `unknown platform "electron"`},
		{"browser platform", func(c *Config) { c.Platform = "browser" }, `platform "browser" is not supported`},
		{"neutral platform", func(c *Config) { c.Platform = "neutral" }, `platform "neutral" is not supported`},
		{"no platform", func(c *Config) { c.Platform = "" }, "platform is required"},
		{"no bundle", func(c *Config) { c.Bundle = false }, "bundle must be true"},
		{"splitting", func(c *Config) { c.Splitting = true }, "splitting is not allowed"},
		{"bad target", func(c *Config) { c.Target = "node-latest" }, "invalid target"},
		{"missing bridge", func(c *Config) { c.EntryPoints = c.EntryPoints[:2] }, "missing bridge entry point"},
		{"duplicate", func(c *Config) { c.EntryPoints = append(c.EntryPoints, "other/preload.js") }, "duplicate entry point"},
		{"escapes project", func(c *Config) { c.EntryPoints[0] = "../main.js" }, "must be inside the project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ForVariant(Flat)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input   string
		want    Target
		wantErr bool
	}{
		{input: "node16.5.0", want: Target{Engines: []api.Engine{{Name: api.EngineNode, Version: "16.5.0"}}}},
		{input: "es2020", want: Target{Language: api.ES2020}},
		{input: "es2019, chrome58", want: Target{
			Language: api.ES2019,
			Engines:  []api.Engine{{Name: api.EngineChrome, Version: "58"}},
		}},
		{input: "", wantErr: true},
		{input: "node", wantErr: true},
		{input: "netscape4", wantErr: true},
		{input: "es2019,es2020", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTarget mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse(t *testing.T) {
	jsonConfig := `{
  // compiled by the host's embedded engine
  "entryPoints": ["main.js", "renderer.js", "preload.js", "index.html"],
  "platform": "node",
  "bundle": true,
  "target": "node16.5.0", /* trailing comma below */
}`
	yamlConfig := `
entryPoints: [src/main.js, src/renderer.js, src/preload.js, src/index.html]
platform: node
bundle: true
target: node16.5.0
`

	got, err := Parse([]byte(jsonConfig), ".jsonc")
	if err != nil {
		t.Fatalf("jsonc: %v", err)
	}
	if diff := cmp.Diff(ForVariant(Flat), got); diff != "" {
		t.Errorf("jsonc mismatch (-want +got):\n%s", diff)
	}

	got, err = Parse([]byte(yamlConfig), ".yaml")
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if diff := cmp.Diff(ForVariant(Nested), got); diff != "" {
		t.Errorf("yaml mismatch (-want +got):\n%s", diff)
	}

	if _, err := Parse([]byte(`{"entryPoints": [], "minify": true}`), ".json"); err == nil {
		t.Error("expected unknown json key to be rejected")
	}
	if _, err := Parse([]byte("minify: true\n"), ".yml"); err == nil {
		t.Error("expected unknown yaml key to be rejected")
	}
	if _, err := Parse(nil, ".toml"); err == nil {
		t.Error("expected unsupported format error")
	}
}

// writeProject lays out a scaffold variant under a temp dir. Extra files
// override the defaults.
func writeProject(t *testing.T, v Variant, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	contents := map[string]string{
		"main.js":     "const path = require(\"path\");\nconsole.log(path.join(\"a\", \"b\"));\n",
		"renderer.js": "import { label } from \"./label.js\";\napp.setFullscreen(true).then(() => console.log(label));\n",
		"label.js":    "export const label = \"fullscreen\";\n",
		"preload.js":  "module.exports = { ready: true };\n",
		"index.html":  "<!doctype html><script src=\"renderer.js\"></script>\n",
	}
	for name, src := range files {
		contents[name] = src
	}

	for name, src := range contents {
		p := filepath.Join(dir, filepath.FromSlash(v.Prefix), name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBuild(t *testing.T) {
	for _, v := range Variants {
		t.Run(v.Name, func(t *testing.T) {
			dir := writeProject(t, v, nil)

			artifacts, err := Build(dir, ForVariant(v))
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}

			var paths []string
			for _, f := range artifacts.Files {
				paths = append(paths, f.Path)
			}
			want := []string{"dist/index.html", "dist/main.js", "dist/preload.js", "dist/renderer.js"}
			if diff := cmp.Diff(want, paths, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
				t.Errorf("outputs mismatch (-want +got):\n%s", diff)
			}

			renderer, ok := artifacts.Lookup(RolePresentation)
			if !ok {
				t.Fatal("no presentation artifact")
			}
			if !strings.Contains(string(renderer.Contents), `"fullscreen"`) {
				t.Error("renderer bundle does not inline its imports")
			}

			if _, err := os.Stat(filepath.Join(dir, "dist")); !os.IsNotExist(err) {
				t.Fatalf("Build wrote to disk before Write: %v", err)
			}
			if err := artifacts.Write(); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "dist", "preload.js")); err != nil {
				t.Errorf("bridge artifact missing: %v", err)
			}
		})
	}
}

func TestBuildMissingEntry(t *testing.T) {
	dir := writeProject(t, Flat, nil)
	os.Remove(filepath.Join(dir, "preload.js"))

	_, err := Build(dir, ForVariant(Flat))
	if !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("expected ErrMissingEntry, got %v", err)
	}
	if !strings.Contains(err.Error(), "preload.js") {
		t.Errorf("error does not name the entry: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dist")); !os.IsNotExist(err) {
		t.Error("failed build produced output")
	}
}

func TestBuildRejectsSyntaxBeyondTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		source  string
		wantErr string
	}{
		{"top-level await", DefaultTarget, "await Promise.resolve(1);\n", "Top-level await"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, Flat, map[string]string{"renderer.js": tt.source})
			cfg := ForVariant(Flat)
			cfg.Target = tt.target

			_, err := Build(dir, cfg)
			var buildErr *BuildError
			if !errors.As(err, &buildErr) {
				t.Fatalf("expected BuildError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in:\n%v", tt.wantErr, err)
			}
			if _, err := os.Stat(filepath.Join(dir, "dist")); !os.IsNotExist(err) {
				t.Error("failed build produced output")
			}
		})
	}
}

func TestBuildAcceptsSyntaxWithinTarget(t *testing.T) {
	dir := writeProject(t, Flat, map[string]string{"renderer.js": "console.log(2n ** 64n);\n"})
	if _, err := Build(dir, ForVariant(Flat)); err != nil {
		t.Errorf("bigint should build for %s: %v", DefaultTarget, err)
	}
}

func TestProject(t *testing.T) {
	nested := writeProject(t, Nested, nil)
	v, err := Detect(nested)
	if err != nil || v != Nested {
		t.Fatalf("Detect = %v, %v; want nested", v, err)
	}
	cfg, err := Project(nested)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if diff := cmp.Diff(ForVariant(Nested), cfg); diff != "" {
		t.Errorf("default config mismatch (-want +got):\n%s", diff)
	}

	flat := writeProject(t, Flat, nil)
	custom := "entryPoints: [main.js, renderer.js, preload.js, index.html]\nplatform: node\nbundle: true\ntarget: node18\noutdir: out\n"
	if err := os.WriteFile(filepath.Join(flat, "collider.yaml"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Project(flat)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if cfg.Target != "node18" || cfg.OutdirOrDefault() != "out" {
		t.Errorf("config file ignored: %+v", cfg)
	}

	if _, err := Project(t.TempDir()); !errors.Is(err, ErrNoProject) {
		t.Errorf("expected ErrNoProject, got %v", err)
	}
}
