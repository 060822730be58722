// Package sqlitepath finds the history database for commands that read it
// without running the server.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no history database exists in any of the
// searched locations.
var ErrNotFound = errors.New("could not find opsdeck history database; pass --sqlite")

// ResolveSQLitePath returns override when set, otherwise the first existing
// database among the well-known locations, most specific first.
func ResolveSQLitePath(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".opsdeck", "history.db"),
		"history.db",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".opsdeck", "history.db"))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "opsdeck", "history.db"))
	}

	return candidates
}
