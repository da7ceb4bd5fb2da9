// internal/browser/shim/shim.go
package shim

import (
	_ "embed"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

//go:embed locate.js
var locatorScript string

// Attr is the DOM attribute located controls are tagged with.
const Attr = "data-emedauto-id"

// Locator returns the script that installs window.__emedauto.
func Locator() (string, error) {
	if strings.TrimSpace(locatorScript) == "" {
		return "", fmt.Errorf("embedded locate.js is empty or failed to load")
	}
	return locatorScript, nil
}

// Call builds an expression that invokes fn on window.__emedauto with args
// encoded as JSON. The locator is installed first if the current document
// does not have it yet.
func Call(fn string, args ...any) (string, error) {
	script, err := Locator()
	if err != nil {
		return "", err
	}
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		b, err := jsoniter.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode argument for %s: %w", fn, err)
		}
		encoded = append(encoded, string(b))
	}
	return fmt.Sprintf("(function(){ if (!window.__emedauto) { %s } return window.__emedauto.%s(%s); })()",
		script, fn, strings.Join(encoded, ",")), nil
}

// Selector returns the CSS selector for a tagged control.
func Selector(id string) string {
	return fmt.Sprintf(`[%s=%q]`, Attr, id)
}
