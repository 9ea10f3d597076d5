// Package file persists the record store as a single JSON snapshot on disk.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/drivewatch/sensor-hub/internal/domain"
)

// Snapshot reads and rewrites the durable snapshot file: one pretty-printed
// JSON array holding every accepted reading. The file is rewritten in full on
// each persist; at the expected write volume (low-rate vehicle telemetry)
// that is cheaper than maintaining an append log with compaction.
type Snapshot struct {
	path   string
	logger *slog.Logger
}

// NewSnapshot creates a gateway for the snapshot file at path.
func NewSnapshot(path string, logger *slog.Logger) *Snapshot {
	return &Snapshot{path: path, logger: logger}
}

// Load reads the snapshot file. A missing file is a normal first run: an
// empty snapshot is created and an empty sequence returned. A malformed file
// returns an error so the caller can decide to start empty.
func (s *Snapshot) Load(_ context.Context) ([]domain.Reading, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := os.WriteFile(s.path, []byte("[]\n"), 0o644); werr != nil {
			return nil, fmt.Errorf("create snapshot file: %w", werr)
		}
		s.logger.Info("snapshot file missing, created empty", "path", s.path)
		return []domain.Reading{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Reading{}, nil
	}

	var readings []domain.Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	return readings, nil
}

// Persist overwrites the snapshot with the full sequence. The write goes to a
// temp file first and is renamed into place, so a crash mid-write never
// leaves a torn file for Load to choke on.
func (s *Snapshot) Persist(_ context.Context, readings []domain.Reading) error {
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
