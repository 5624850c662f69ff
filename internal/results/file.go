package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

var ErrRecordExists = errors.New("result record already exists")

// FileSink writes one JSON document per run and appends an NDJSON index
// line per scenario. Documents are never overwritten.
type FileSink struct {
	mu sync.Mutex
}

func NewFileSink() *FileSink {
	return &FileSink{}
}

func (s *FileSink) Name() string {
	return "file"
}

func (s *FileSink) WriteRun(ctx context.Context, rec domain.RunRecord, doc RunDocument) error {
	if s == nil {
		return fmt.Errorf("file sink not initialized")
	}
	loc := rec.Spec.Location
	if loc.RecordFile == "" {
		return fmt.Errorf("run %s has no record path", rec.RunID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WriteDocument(loc.RecordFile, doc); err != nil {
		return err
	}
	if loc.IndexFile == "" {
		return nil
	}
	return appendIndex(loc.IndexFile, indexLine{
		RunID:           doc.RunID,
		Set:             doc.Set,
		Repeat:          doc.Repeat,
		Outcome:         doc.Status.Outcome,
		ExitCode:        doc.Status.ExitCode,
		DurationSeconds: doc.DurationSeconds,
		Record:          relativeTo(filepath.Dir(loc.IndexFile), loc.RecordFile),
		StartedAt:       doc.StartedAt,
	})
}

func (s *FileSink) WriteBaseline(ctx context.Context, target BaselineTarget, doc BaselineDocument) error {
	if s == nil {
		return fmt.Errorf("file sink not initialized")
	}
	if target.Path == "" {
		return fmt.Errorf("baseline %s has no path", doc.BaselineID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteDocument(target.Path, doc)
}

// WriteDocument writes v as indented JSON to path. The file appears
// atomically and fully synced; an existing file is left untouched and
// ErrRecordExists is returned.
func WriteDocument(path string, v any) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrRecordExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	err = publish(tmpName, path)
	cleanup()
	if err != nil {
		return err
	}
	return syncDir(dir)
}

// publish hard-links the finished temp file into place. Unlike rename, the
// link fails when path already exists, so a concurrent writer never loses
// its document.
func publish(tmpName, path string) error {
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrRecordExists, path)
		}
		return fmt.Errorf("link %s: %w", path, err)
	}
	return nil
}

func appendIndex(path string, line indexLine) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(line); err != nil {
		f.Close()
		return fmt.Errorf("append index: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer d.Close()
	// Directory fsync is unsupported on some platforms and filesystems.
	_ = d.Sync()
	return nil
}

func relativeTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
