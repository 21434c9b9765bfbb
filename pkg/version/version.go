package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the release version baked into the binary.
func Get() string {
	return strings.TrimSpace(raw)
}
