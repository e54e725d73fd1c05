package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var ErrNoProject = errors.New("bundle: no collider project found")

// Variant is a scaffold layout. Variants differ only in where sources live.
type Variant struct {
	Name   string
	Prefix string
}

var (
	Flat   = Variant{Name: "flat", Prefix: ""}
	Nested = Variant{Name: "nested", Prefix: "src/"}
)

// Variants lists the known layouts.
var Variants = []Variant{Flat, Nested}

// ParseVariant looks a variant up by name.
func ParseVariant(name string) (Variant, error) {
	for _, v := range Variants {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("unknown variant %q", name)
}

// ForVariant returns the canonical configuration for v.
func ForVariant(v Variant) Config {
	entries := make([]string, len(Roles))
	for i, role := range Roles {
		entries[i] = v.Prefix + role.File()
	}
	return Config{
		EntryPoints: entries,
		Platform:    PlatformNode,
		Bundle:      true,
		Target:      DefaultTarget,
	}
}

// Prefix returns the source root shared by every entry point of c, taken from
// the bridge entry.
func (c Config) Prefix() (string, error) {
	bridge, ok := c.Entry(RoleBridge)
	if !ok {
		return "", fmt.Errorf("%w: no bridge entry point", ErrInvalidConfig)
	}
	prefix := strings.TrimSuffix(bridge, RoleBridge.File())
	for _, e := range c.EntryPoints {
		if !strings.HasPrefix(e, prefix) {
			return "", fmt.Errorf("%w: entry point %q outside source root %q", ErrInvalidConfig, e, prefix)
		}
	}
	return prefix, nil
}

// CheckParity reports every way a and b differ beyond their source root.
func CheckParity(a, b Config) error {
	var errs []error

	if a.Platform != b.Platform {
		errs = append(errs, fmt.Errorf("platform differs: %q vs %q", a.Platform, b.Platform))
	}
	if a.Bundle != b.Bundle {
		errs = append(errs, fmt.Errorf("bundle differs: %v vs %v", a.Bundle, b.Bundle))
	}
	if a.Target != b.Target {
		errs = append(errs, fmt.Errorf("target differs: %q vs %q", a.Target, b.Target))
	}
	if a.Splitting != b.Splitting {
		errs = append(errs, fmt.Errorf("splitting differs: %v vs %v", a.Splitting, b.Splitting))
	}
	if a.OutdirOrDefault() != b.OutdirOrDefault() {
		errs = append(errs, fmt.Errorf("outdir differs: %q vs %q", a.OutdirOrDefault(), b.OutdirOrDefault()))
	}

	pa, errA := a.Prefix()
	pb, errB := b.Prefix()
	if errA != nil || errB != nil {
		errs = append(errs, errA, errB)
	} else {
		ea := trimAll(a.EntryPoints, pa)
		eb := trimAll(b.EntryPoints, pb)
		if !slices.Equal(ea, eb) {
			errs = append(errs, fmt.Errorf("entry points differ beyond prefix: %v vs %v", ea, eb))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("bundle: variants diverge: %w", err)
	}
	return nil
}

func trimAll(entries []string, prefix string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = strings.TrimPrefix(e, prefix)
	}
	return out
}

// Detect infers the layout of the project in dir from where its bridge
// source lives.
func Detect(dir string) (Variant, error) {
	for _, v := range []Variant{Nested, Flat} {
		if fileExists(filepath.Join(dir, filepath.FromSlash(v.Prefix), RoleBridge.File())) {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w in %s", ErrNoProject, dir)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
