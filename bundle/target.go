package bundle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Target is a parsed target string: an optional language level plus engine
// versions, e.g. "es2020,node16.5.0".
type Target struct {
	Language api.Target
	Engines  []api.Engine
}

var languages = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var engines = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"deno":    api.EngineDeno,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"hermes":  api.EngineHermes,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"rhino":   api.EngineRhino,
	"safari":  api.EngineSafari,
}

var engineVersion = regexp.MustCompile(`^([a-z]+)(\d+(?:\.\d+){0,2})$`)

// ParseTarget parses a comma separated target string.
func ParseTarget(s string) (Target, error) {
	if strings.TrimSpace(s) == "" {
		return Target{}, fmt.Errorf("target is required")
	}

	var t Target
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if lang, ok := languages[part]; ok {
			if t.Language != api.DefaultTarget {
				return Target{}, fmt.Errorf("target %q names more than one language level", s)
			}
			t.Language = lang
			continue
		}

		m := engineVersion.FindStringSubmatch(part)
		if m == nil {
			return Target{}, fmt.Errorf("invalid target %q", part)
		}
		name, ok := engines[m[1]]
		if !ok {
			return Target{}, fmt.Errorf("unknown target engine %q", m[1])
		}
		t.Engines = append(t.Engines, api.Engine{Name: name, Version: m[2]})
	}
	return t, nil
}
