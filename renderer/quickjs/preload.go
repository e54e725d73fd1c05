package quickjs

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/caffeineduck/collider/bridge"
)

//go:embed preload.js
var preloadSource string

var preloadTemplate = template.Must(template.New("preload.js").Parse(preloadSource))

// Preload renders the bridge preload for the current method table. Frame
// markers are written as JS escapes so the script stays printable.
func Preload() (string, error) {
	methods, err := json.Marshal(bridge.Methods)
	if err != nil {
		return "", fmt.Errorf("encode methods: %w", err)
	}

	var buf bytes.Buffer
	err = preloadTemplate.Execute(&buf, struct {
		Prefix   string
		Suffix   string
		Poll     string
		Methods  string
		WorldKey string
	}{
		Prefix:   `\x00COLLIDER:`,
		Suffix:   `\x00`,
		Poll:     pollPayload,
		Methods:  string(methods),
		WorldKey: bridge.WorldKey,
	})
	if err != nil {
		return "", fmt.Errorf("render preload: %w", err)
	}
	return buf.String(), nil
}
