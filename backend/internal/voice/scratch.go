package voice

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultScratchTTL is how long a segment's scratch directory survives before
// the delayed cleanup removes it, whether or not processing consumed the file.
const DefaultScratchTTL = 30 * time.Minute

// ScratchStore allocates one scratch directory per utterance and schedules
// its unconditional deletion. The delayed delete is a leak-prevention
// backstop that runs independently of the processing queues, so a crashed
// pipeline still results in cleanup.
type ScratchStore struct {
	baseDir string
	ttl     time.Duration
	logger  *zap.Logger
}

// NewScratchStore creates the base directory if needed.
func NewScratchStore(baseDir string, ttl time.Duration, logger *zap.Logger) (*ScratchStore, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "voxa-scratch")
	}
	if ttl <= 0 {
		ttl = DefaultScratchTTL
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch base dir: %w", err)
	}
	return &ScratchStore{baseDir: baseDir, ttl: ttl, logger: logger}, nil
}

// Allocate creates a fresh collision-free directory and returns the full path
// of a file named name inside it. The directory is removed after the TTL;
// removal failures are swallowed.
func (s *ScratchStore) Allocate(name string) (string, error) {
	dir := filepath.Join(s.baseDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}

	time.AfterFunc(s.ttl, func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Debug("Failed to remove scratch dir",
				zap.String("dir", dir),
				zap.Error(err))
		}
	})

	return filepath.Join(dir, name), nil
}
