package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// BuildError carries the compiler diagnostics of a failed build.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("bundle: build failed with %d error(s):\n%s", len(e.Messages), strings.Join(e.Messages, "\n"))
}

// File is one compiled artifact.
type File struct {
	// Path is relative to the project directory, slash separated.
	Path     string
	Role     Role
	Contents []byte
}

// Artifacts is the in-memory result of a successful build. Nothing reaches
// the disk until Write.
type Artifacts struct {
	Dir      string
	Files    []File
	Warnings []string
}

// Lookup returns the artifact compiled for role.
func (a *Artifacts) Lookup(role Role) (File, bool) {
	for _, f := range a.Files {
		if f.Role == role {
			return f, true
		}
	}
	return File{}, false
}

// Write stores every artifact under the project directory.
func (a *Artifacts) Write() error {
	for _, f := range a.Files {
		p := filepath.Join(a.Dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("writing %s: %w", f.Path, err)
		}
		if err := os.WriteFile(p, f.Contents, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.Path, err)
		}
	}
	return nil
}

// Build compiles the project in dir. Configuration problems, missing entry
// points and syntax the target cannot run are all reported before any
// artifact exists.
func Build(dir string, cfg Config) (*Artifacts, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}

	var missing []error
	for _, e := range cfg.EntryPoints {
		if !fileExists(filepath.Join(absDir, filepath.FromSlash(e))) {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingEntry, e))
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	target, err := ParseTarget(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	result := api.Build(api.BuildOptions{
		AbsWorkingDir: absDir,
		EntryPoints:   cfg.EntryPoints,
		Bundle:        cfg.Bundle,
		Platform:      api.PlatformNode,
		Target:        target.Language,
		Engines:       target.Engines,
		Outdir:        cfg.OutdirOrDefault(),
		Loader:        map[string]api.Loader{".html": api.LoaderCopy},
		Metafile:      true,
		Write:         false,
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, &BuildError{Messages: formatMessages(result.Errors, api.ErrorMessage)}
	}

	outputs, err := entryOutputs(result.Metafile)
	if err != nil {
		return nil, err
	}
	bridge, _ := cfg.Entry(RoleBridge)
	if n := countOutputs(outputs, path.Clean(bridge)); n != 1 {
		return nil, fmt.Errorf("bundle: bridge %s produced %d output files, want 1", bridge, n)
	}

	artifacts := &Artifacts{
		Dir:      absDir,
		Warnings: formatMessages(result.Warnings, api.WarningMessage),
	}
	for _, out := range result.OutputFiles {
		rel, err := filepath.Rel(absDir, out.Path)
		if err != nil {
			return nil, fmt.Errorf("bundle: %w", err)
		}
		rel = filepath.ToSlash(rel)
		artifacts.Files = append(artifacts.Files, File{
			Path:     rel,
			Role:     roleOf(rel),
			Contents: out.Contents,
		})
	}
	return artifacts, nil
}

func formatMessages(msgs []api.Message, kind api.MessageKind) []string {
	if len(msgs) == 0 {
		return nil
	}
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind})
	for i, m := range formatted {
		formatted[i] = strings.TrimSpace(m)
	}
	return formatted
}

// entryOutputs maps each output path in an esbuild metafile to the entry
// point it was compiled from.
func entryOutputs(metafile string) (map[string]string, error) {
	var meta struct {
		Outputs map[string]struct {
			EntryPoint string `json:"entryPoint"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil, fmt.Errorf("bundle: reading metafile: %w", err)
	}

	out := make(map[string]string, len(meta.Outputs))
	for p, o := range meta.Outputs {
		out[p] = o.EntryPoint
	}
	return out, nil
}

func countOutputs(outputs map[string]string, entry string) int {
	n := 0
	for p, e := range outputs {
		if e == entry && !strings.HasSuffix(p, ".map") {
			n++
		}
	}
	return n
}

// roleOf maps an output back to its role. Outputs keep their entry's name.
func roleOf(output string) Role {
	for _, role := range Roles {
		if path.Base(output) == role.File() {
			return role
		}
	}
	return ""
}
