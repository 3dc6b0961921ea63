// Package workspace manages the run-private build directory and the
// ephemeral intermediate output directories generator stages write into
// before reconciliation. Intermediate directories are uniquely named so
// concurrent units never alias each other.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/parsekit/grambuild/internal/logfields"
)

// Manager hands out intermediate directories under a build directory.
type Manager struct {
	buildDir string
	// keep retains intermediate directories after reconciliation for
	// debugging; they are logged instead of deleted.
	keep bool
}

// NewManager creates a manager rooted at buildDir (created on demand).
func NewManager(buildDir string, keep bool) *Manager {
	if buildDir == "" {
		buildDir = os.TempDir()
	}
	return &Manager{buildDir: buildDir, keep: keep}
}

// BuildDir returns the build directory all intermediate directories live under.
func (m *Manager) BuildDir() string { return m.buildDir }

// Intermediate creates a fresh, uniquely named intermediate directory for a
// stage. The suffix guarantees two units (or two runs) never share one.
func (m *Manager) Intermediate(stage string) (string, error) {
	dir := filepath.Join(m.buildDir, fmt.Sprintf("%s-%s", stage, uuid.NewString()[:8]))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create intermediate directory: %w", err)
	}
	slog.Debug("Created intermediate directory", logfields.Stage(stage), logfields.Path(dir))
	return dir, nil
}

// Release tears an intermediate directory down, or merely logs it when the
// keep flag is set. Deletion failures are warnings: the directory is private
// to this run and harmless if left behind.
func (m *Manager) Release(dir string) {
	if dir == "" {
		return
	}
	if m.keep {
		slog.Info("Intermediate directory not deleted as requested", logfields.Path(dir))
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to delete intermediate directory", logfields.Path(dir), logfields.Error(err))
		return
	}
	slog.Debug("Deleted intermediate directory", logfields.Path(dir))
}
