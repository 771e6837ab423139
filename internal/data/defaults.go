package data

import (
	"embed"
	"fmt"
	"os"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// readTable returns the file at path, or the built-in table name when path
// is empty.
func readTable(path, name string) ([]byte, error) {
	if path == "" {
		raw, err := defaults.ReadFile("defaults/" + name)
		if err != nil {
			return nil, fmt.Errorf("read built-in %s: %w", name, err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return raw, nil
}
