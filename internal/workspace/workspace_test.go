package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIntermediateCreatesUniqueDirs(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)

	a, err := mgr.Intermediate("treegen")
	if err != nil {
		t.Fatalf("Intermediate() failed: %v", err)
	}
	b, err := mgr.Intermediate("treegen")
	if err != nil {
		t.Fatalf("Intermediate() failed: %v", err)
	}

	if a == b {
		t.Fatalf("expected unique directories, got %s twice", a)
	}
	if !strings.HasPrefix(filepath.Base(a), "treegen-") {
		t.Errorf("expected stage-prefixed name, got %s", a)
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("intermediate directory missing: %v", err)
	}
}

func TestReleaseRemovesDir(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)
	dir, err := mgr.Intermediate("parsegen")
	if err != nil {
		t.Fatalf("Intermediate() failed: %v", err)
	}

	mgr.Release(dir)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory still exists after release: %s", dir)
	}
}

func TestReleaseKeepsDirWhenRequested(t *testing.T) {
	mgr := NewManager(t.TempDir(), true)
	dir, err := mgr.Intermediate("parsegen")
	if err != nil {
		t.Fatalf("Intermediate() failed: %v", err)
	}

	mgr.Release(dir)
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should be kept: %v", err)
	}
}
