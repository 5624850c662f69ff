package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/geobench-labs/geobench-go/internal/domain"
	"github.com/geobench-labs/geobench-go/internal/platform/objectstore"
)

const jsonContentType = "application/json"

// ObjectStoreSink mirrors run and baseline documents into a bucket, keyed
// like the local layout under an invocation prefix.
type ObjectStoreSink struct {
	store  objectstore.Store
	bucket string
	prefix string
}

func NewObjectStoreSink(store objectstore.Store, bucket, prefix string) (*ObjectStoreSink, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &ObjectStoreSink{store: store, bucket: bucket, prefix: strings.Trim(strings.TrimSpace(prefix), "/")}, nil
}

func (s *ObjectStoreSink) Name() string {
	return "objectstore"
}

func (s *ObjectStoreSink) WriteRun(ctx context.Context, rec domain.RunRecord, doc RunDocument) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("object store sink not initialized")
	}
	if rec.Spec.Location.Key == "" {
		return fmt.Errorf("run %s has no object key", rec.RunID)
	}
	return s.put(ctx, s.key(doc.InvocationID, rec.Spec.Location.Key), doc)
}

func (s *ObjectStoreSink) WriteBaseline(ctx context.Context, target BaselineTarget, doc BaselineDocument) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("object store sink not initialized")
	}
	if target.Key == "" {
		return fmt.Errorf("baseline %s has no object key", doc.BaselineID)
	}
	return s.put(ctx, s.key(doc.InvocationID, target.Key), doc)
}

// key places objects under <prefix>/<invocation>/<relative key>.
func (s *ObjectStoreSink) key(invocationID, rel string) string {
	parts := make([]string, 0, 3)
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	if id := strings.TrimSpace(invocationID); id != "" {
		parts = append(parts, id)
	}
	parts = append(parts, strings.TrimPrefix(rel, "/"))
	return path.Join(parts...)
}

// put refuses keys that already hold an object so mirrored documents stay
// append-only like the local tree.
func (s *ObjectStoreSink) put(ctx context.Context, key string, v any) error {
	if _, err := s.store.Stat(ctx, s.bucket, key); err == nil {
		return fmt.Errorf("%w: %s/%s", ErrRecordExists, s.bucket, key)
	} else if !errors.Is(err, objectstore.ErrNotFound) {
		return fmt.Errorf("stat %s: %w", key, err)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Put(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), jsonContentType); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
