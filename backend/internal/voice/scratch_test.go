package voice

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestScratchAllocationsDoNotCollide(t *testing.T) {
	store, err := NewScratchStore(t.TempDir(), time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScratchStore failed: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		path, err := store.Allocate("utterance.wav")
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if seen[path] {
			t.Fatalf("Allocate returned a duplicate path: %s", path)
		}
		seen[path] = true

		if filepath.Base(path) != "utterance.wav" {
			t.Errorf("Expected file name to be preserved, got %s", path)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Errorf("Allocated directory is not writable: %v", err)
		}
	}
}

func TestScratchCleansUpAfterTTL(t *testing.T) {
	store, err := NewScratchStore(t.TempDir(), 20*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScratchStore failed: %v", err)
	}

	path, err := store.Allocate("utterance.wav")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Dir(path))
		return os.IsNotExist(err)
	}, "delayed cleanup to remove the scratch dir")
}

func TestScratchFileSurvivesUntilTTL(t *testing.T) {
	store, err := NewScratchStore(t.TempDir(), time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScratchStore failed: %v", err)
	}

	path, err := store.Allocate("utterance.wav")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected file to survive well before the TTL: %v", err)
	}
}

func TestScratchDefaultsTTL(t *testing.T) {
	store, err := NewScratchStore(t.TempDir(), 0, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScratchStore failed: %v", err)
	}
	if store.ttl != DefaultScratchTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultScratchTTL, store.ttl)
	}
}
