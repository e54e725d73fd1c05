// Package bundle describes how each process role of a collider project is
// compiled into a runnable artifact, and runs that compilation with esbuild.
//
// A project has four entry points, one per role: the host script (main.js),
// the presentation script (renderer.js), the bridge preload (preload.js) and
// the document (index.html). Every entry shares one platform, bundling flag
// and target engine.
package bundle

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	// PlatformNode is the only platform: every role assumes host-process APIs.
	PlatformNode = "node"

	// DefaultTarget is the engine embedded by the host runtime.
	DefaultTarget = "node16.5.0"
	DefaultOutdir = "dist"
)

var (
	ErrInvalidConfig = errors.New("bundle: invalid configuration")
	ErrMissingEntry  = errors.New("bundle: entry point not found")
)

// Role is the process role an entry point compiles for.
type Role string

const (
	RoleHost         Role = "host"
	RolePresentation Role = "presentation"
	RoleBridge       Role = "bridge"
	RoleDocument     Role = "document"
)

// Roles lists every role in entry point order.
var Roles = []Role{RoleHost, RolePresentation, RoleBridge, RoleDocument}

// File returns the entry file name for r.
func (r Role) File() string {
	switch r {
	case RoleHost:
		return "main.js"
	case RolePresentation:
		return "renderer.js"
	case RoleBridge:
		return "preload.js"
	case RoleDocument:
		return "index.html"
	}
	return ""
}

// Config is the build configuration surface. Field names follow the
// configuration file keys.
type Config struct {
	EntryPoints []string `json:"entryPoints" yaml:"entryPoints"`
	Platform    string   `json:"platform" yaml:"platform"`
	Bundle      bool     `json:"bundle" yaml:"bundle"`
	Target      string   `json:"target" yaml:"target"`
	Outdir      string   `json:"outdir,omitempty" yaml:"outdir,omitempty"`
	Splitting   bool     `json:"splitting,omitempty" yaml:"splitting,omitempty"`
}

// Entry returns the entry point compiled for role.
func (c Config) Entry(role Role) (string, bool) {
	for _, e := range c.EntryPoints {
		if path.Base(e) == role.File() {
			return e, true
		}
	}
	return "", false
}

// OutdirOrDefault returns Outdir, or DefaultOutdir when unset.
func (c Config) OutdirOrDefault() string {
	if c.Outdir == "" {
		return DefaultOutdir
	}
	return c.Outdir
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	var errs []error

	switch c.Platform {
	case PlatformNode:
	case "browser", "neutral":
		errs = append(errs, fmt.Errorf("platform %q is not supported: roles assume host-process APIs, use %q", c.Platform, PlatformNode))
	case "":
		errs = append(errs, errors.New("platform is required"))
	default:
		errs = append(errs, fmt.Errorf("unknown platform %q", c.Platform))
	}

	if !c.Bundle {
		errs = append(errs, errors.New("bundle must be true: every role ships as a single artifact"))
	}
	if c.Splitting {
		errs = append(errs, errors.New("splitting is not allowed: the bridge is loaded from a single path"))
	}

	if _, err := ParseTarget(c.Target); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool, len(c.EntryPoints))
	for _, e := range c.EntryPoints {
		switch {
		case e == "":
			errs = append(errs, errors.New("empty entry point"))
		case path.IsAbs(e) || strings.HasPrefix(path.Clean(e), ".."):
			errs = append(errs, fmt.Errorf("entry point %q must be inside the project", e))
		case seen[path.Base(e)]:
			errs = append(errs, fmt.Errorf("duplicate entry point %q", e))
		}
		seen[path.Base(e)] = true
	}
	for _, role := range Roles {
		if !seen[role.File()] {
			errs = append(errs, fmt.Errorf("missing %s entry point %s", role, role.File()))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
