package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

// checkpointsDir returns the checkpoints directory under persistDir,
// creating it if necessary (§6: "checkpoints/<workerId>.json").
func checkpointsDir(persistDir string) (string, error) {
	dir := filepath.Join(persistDir, "checkpoints")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("lifecycle: creating checkpoints dir: %w", err)
	}
	return dir, nil
}

// writeCheckpoint atomically writes cp to
// <persistDir>/checkpoints/<workerId>.json and prunes older files past
// worker.MaxRetainedCheckpoints (§3: "retained bounded (50 most recent)").
func writeCheckpoint(persistDir string, cp worker.Checkpoint) error {
	dir, err := checkpointsDir(persistDir)
	if err != nil {
		return err
	}

	body, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("lifecycle: encoding checkpoint: %w", err)
	}

	path := filepath.Join(dir, cp.WorkerID+".json")
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("lifecycle: creating checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("lifecycle: writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("lifecycle: closing checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("lifecycle: renaming checkpoint into place: %w", err)
	}

	return pruneCheckpoints(dir)
}

// pruneCheckpoints keeps only the worker.MaxRetainedCheckpoints
// most-recently-modified checkpoint files in dir.
func pruneCheckpoints(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("lifecycle: listing checkpoints: %w", err)
	}

	type fileInfo struct {
		name    string
		modTime int64
	}
	var files []fileInfo
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: ent.Name(), modTime: info.ModTime().UnixNano()})
	}
	if len(files) <= worker.MaxRetainedCheckpoints {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })
	for _, f := range files[worker.MaxRetainedCheckpoints:] {
		_ = os.Remove(filepath.Join(dir, f.name))
	}
	return nil
}
