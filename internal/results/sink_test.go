package results

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geobench-labs/geobench-go/internal/domain"
	"github.com/geobench-labs/geobench-go/internal/layout"
	"github.com/geobench-labs/geobench-go/internal/platform/objectstore"
)

func locatedRecord(t *testing.T, root string, set, repeat int) domain.RunRecord {
	t.Helper()
	policy := layout.Policy{Root: root, Structure: domain.OutputNested}
	rec := sampleRecord()
	rec.RunID = fmt.Sprintf("run-%d-%d", set, repeat)
	rec.InvocationID = "inv-1"
	rec.Spec = domain.RunSpec{
		Scenario:    "Buffer Sweep",
		Type:        domain.ExecutionTypeShell,
		SetIndex:    set,
		SetCount:    2,
		RepeatIndex: repeat,
		Repeat:      2,
		Binding:     []domain.Assignment{{Name: "distance", Value: "10"}},
		Command:     domain.CommandSpec{Executable: "sh", Args: []string{"bench.sh", "--distance=10"}},
		Location:    policy.Locate("Buffer Sweep", set, 2, repeat, 2),
	}
	rec.Status = domain.ExitStatus{Outcome: domain.OutcomeSucceeded}
	rec.Summary = Summarize(rec, nil)
	return rec
}

func TestFileSinkWritesRecordAndIndex(t *testing.T) {
	root := t.TempDir()
	sink := NewFileSink()

	for _, idx := range [][2]int{{0, 0}, {0, 1}} {
		rec := locatedRecord(t, root, idx[0], idx[1])
		if err := sink.WriteRun(context.Background(), rec, NewRunDocument(rec)); err != nil {
			t.Fatalf("WriteRun() error = %v", err)
		}
	}

	rec := locatedRecord(t, root, 0, 1)
	raw, err := os.ReadFile(rec.Spec.Location.RecordFile)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var doc RunDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if doc.Schema != RunSchemaV1 || doc.Set != 1 || doc.Repeat != 2 {
		t.Fatalf("doc schema/set/repeat=%s/%d/%d, want %s/1/2", doc.Schema, doc.Set, doc.Repeat, RunSchemaV1)
	}
	if len(doc.Samples) != 4 || doc.Summary.Tree.PeakCPU != 80 {
		t.Fatalf("doc samples=%d tree peak=%v, want 4 and 80", len(doc.Samples), doc.Summary.Tree.PeakCPU)
	}

	entries, err := os.ReadDir(filepath.Dir(rec.Spec.Location.RecordFile))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}

	f, err := os.Open(rec.Spec.Location.IndexFile)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer f.Close()
	var lines []indexLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line indexLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode index line: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("index lines=%d, want 2", len(lines))
	}
	if lines[1].Record != "set_1/run_2/result.json" {
		t.Fatalf("index record=%q, want set_1/run_2/result.json", lines[1].Record)
	}
}

func TestFileSinkRefusesOverwrite(t *testing.T) {
	root := t.TempDir()
	sink := NewFileSink()
	rec := locatedRecord(t, root, 1, 0)
	if err := sink.WriteRun(context.Background(), rec, NewRunDocument(rec)); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}
	before, _ := os.ReadFile(rec.Spec.Location.RecordFile)

	rec.RunID = "other"
	err := sink.WriteRun(context.Background(), rec, NewRunDocument(rec))
	if !errors.Is(err, ErrRecordExists) {
		t.Fatalf("second WriteRun() error = %v, want ErrRecordExists", err)
	}
	after, _ := os.ReadFile(rec.Spec.Location.RecordFile)
	if string(before) != string(after) {
		t.Fatalf("record changed after refused overwrite")
	}
}

func TestPublishKeepsFileCreatedDuringWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	tmp := filepath.Join(dir, ".result.json.1.tmp")
	if err := os.WriteFile(tmp, []byte("late"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}

	if err := publish(tmp, path); !errors.Is(err, ErrRecordExists) {
		t.Fatalf("publish() error = %v, want ErrRecordExists", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "first" {
		t.Fatalf("target=%q, want the existing document kept", got)
	}
}

func TestWriteDocumentLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := WriteDocument(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("WriteDocument() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		t.Fatalf("dir entries=%v, want only doc.json", entries)
	}
}

func TestFileSinkBaseline(t *testing.T) {
	root := t.TempDir()
	policy := layout.Policy{Root: root}
	path, key := policy.BaselineFile(domain.BaselinePerInvocation, "", "inv-1")
	b := domain.BaselineRecord{
		ID:        "base-1",
		Scope:     domain.BaselinePerInvocation,
		Interval:  time.Second,
		Snapshots: []domain.SystemSnapshot{{CPUPercent: 3, MemoryPercent: 20}},
	}
	if err := NewFileSink().WriteBaseline(context.Background(), BaselineTarget{Path: path, Key: key}, NewBaselineDocument(b)); err != nil {
		t.Fatalf("WriteBaseline() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read baseline: %v", err)
	}
	var doc BaselineDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode baseline: %v", err)
	}
	if doc.BaselineID != "base-1" || doc.Summary.Samples != 1 || doc.IntervalSeconds != 1 {
		t.Fatalf("baseline doc=%+v", doc)
	}
}

type putCall struct {
	bucket, key, contentType string
	body                     []byte
}

type fakeStore struct {
	puts []putCall
	err  error
}

func (f *fakeStore) Put(_ context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(raw)) != size {
		return errors.New("size mismatch")
	}
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, contentType: contentType, body: raw})
	return nil
}

func (f *fakeStore) Stat(_ context.Context, bucket, key string) (objectstore.ObjectInfo, error) {
	for _, p := range f.puts {
		if p.bucket == bucket && p.key == key {
			return objectstore.ObjectInfo{Key: key, Size: int64(len(p.body)), ContentType: p.contentType}, nil
		}
	}
	return objectstore.ObjectInfo{}, objectstore.ErrNotFound
}

func TestObjectStoreSinkKeys(t *testing.T) {
	store := &fakeStore{}
	sink, err := NewObjectStoreSink(store, "bench", "/geobench/")
	if err != nil {
		t.Fatalf("NewObjectStoreSink() error = %v", err)
	}
	rec := locatedRecord(t, t.TempDir(), 1, 0)
	if err := sink.WriteRun(context.Background(), rec, NewRunDocument(rec)); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}
	if len(store.puts) != 1 {
		t.Fatalf("puts=%d, want 1", len(store.puts))
	}
	got := store.puts[0]
	if got.bucket != "bench" || got.contentType != jsonContentType {
		t.Fatalf("put bucket/content type=%s/%s", got.bucket, got.contentType)
	}
	if want := "geobench/inv-1/buffer-sweep/set_2/run_1/result.json"; got.key != want {
		t.Fatalf("key=%q, want %q", got.key, want)
	}
	var doc RunDocument
	if err := json.Unmarshal(got.body, &doc); err != nil || doc.RunID != rec.RunID {
		t.Fatalf("body run id=%q err=%v, want %q", doc.RunID, err, rec.RunID)
	}
}

func TestObjectStoreSinkRefusesExistingKey(t *testing.T) {
	store := &fakeStore{}
	sink, err := NewObjectStoreSink(store, "bench", "geobench")
	if err != nil {
		t.Fatalf("NewObjectStoreSink() error = %v", err)
	}
	rec := locatedRecord(t, t.TempDir(), 1, 0)
	if err := sink.WriteRun(context.Background(), rec, NewRunDocument(rec)); err != nil {
		t.Fatalf("first WriteRun() error = %v", err)
	}
	err = sink.WriteRun(context.Background(), rec, NewRunDocument(rec))
	if !errors.Is(err, ErrRecordExists) {
		t.Fatalf("second WriteRun() error = %v, want ErrRecordExists", err)
	}
	if len(store.puts) != 1 {
		t.Fatalf("puts=%d, want the first object untouched", len(store.puts))
	}
}

func TestObjectStoreSinkStatFailure(t *testing.T) {
	sink, err := NewObjectStoreSink(statErrStore{&fakeStore{}}, "bench", "")
	if err != nil {
		t.Fatalf("NewObjectStoreSink() error = %v", err)
	}
	rec := locatedRecord(t, t.TempDir(), 1, 0)
	err = sink.WriteRun(context.Background(), rec, NewRunDocument(rec))
	if err == nil || errors.Is(err, ErrRecordExists) || !strings.Contains(err.Error(), "stat") {
		t.Fatalf("WriteRun() error = %v, want stat failure", err)
	}
}

type statErrStore struct{ *fakeStore }

func (statErrStore) Stat(context.Context, string, string) (objectstore.ObjectInfo, error) {
	return objectstore.ObjectInfo{}, errors.New("connection refused")
}

func TestObjectStoreSinkRequiresBucket(t *testing.T) {
	if _, err := NewObjectStoreSink(&fakeStore{}, " ", ""); err == nil {
		t.Fatalf("expected bucket error")
	}
	if _, err := NewObjectStoreSink(nil, "bench", ""); err == nil {
		t.Fatalf("expected store error")
	}
}

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return driverResult(1), nil
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestRunInsertQueryIsIdempotent(t *testing.T) {
	if !strings.Contains(insertRunQuery, "ON CONFLICT (run_id) DO NOTHING") {
		t.Fatalf("expected run insert to be idempotent")
	}
	if !strings.Contains(insertBaselineQuery, "ON CONFLICT (baseline_id) DO NOTHING") {
		t.Fatalf("expected baseline insert to be idempotent")
	}
	schema := PostgresSchema()
	if len(schema) != 2 || !strings.Contains(schema[0], "benchmark_baselines") || !strings.Contains(schema[1], "benchmark_runs") {
		t.Fatalf("PostgresSchema()=%v, want baselines before runs", schema)
	}
	if strings.Count(insertRunQuery, "$") != 20 {
		t.Fatalf("insertRunQuery placeholders=%d, want 20", strings.Count(insertRunQuery, "$"))
	}
}

func TestPostgresSinkWriteRun(t *testing.T) {
	db := &fakeDB{}
	sink := NewPostgresSink(db)
	rec := locatedRecord(t, t.TempDir(), 0, 0)
	if err := sink.WriteRun(context.Background(), rec, NewRunDocument(rec)); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}
	if len(db.calls) != 1 {
		t.Fatalf("exec calls=%d, want 1", len(db.calls))
	}
	insert := db.calls[0]
	if insert.query != insertRunQuery || len(insert.args) != 20 {
		t.Fatalf("insert query/args=%d args", len(insert.args))
	}
	if insert.args[0] != rec.RunID {
		t.Fatalf("run_id arg=%v, want %s", insert.args[0], rec.RunID)
	}
	if baseline, ok := insert.args[2].(sql.NullString); !ok || baseline.Valid {
		t.Fatalf("baseline_id arg=%#v, want NULL", insert.args[2])
	}
	if set := insert.args[5]; set != 1 {
		t.Fatalf("set_number=%v, want 1", set)
	}
}

func TestPostgresSinkPropagatesErrors(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	sink := NewPostgresSink(db)
	rec := locatedRecord(t, t.TempDir(), 0, 0)
	if err := sink.WriteRun(context.Background(), rec, NewRunDocument(rec)); err == nil {
		t.Fatalf("expected insert error")
	}
	var nilSink *PostgresSink
	if err := nilSink.WriteRun(context.Background(), rec, NewRunDocument(rec)); err == nil {
		t.Fatalf("expected not initialized error")
	}
	if NewPostgresSink(nil) != nil {
		t.Fatalf("NewPostgresSink(nil) should return nil")
	}
}

type recordingSink struct {
	name      string
	runs      []string
	baselines []string
	err       error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) WriteRun(_ context.Context, rec domain.RunRecord, _ RunDocument) error {
	if s.err != nil {
		return s.err
	}
	s.runs = append(s.runs, rec.RunID)
	return nil
}

func (s *recordingSink) WriteBaseline(_ context.Context, _ BaselineTarget, doc BaselineDocument) error {
	if s.err != nil {
		return s.err
	}
	s.baselines = append(s.baselines, doc.BaselineID)
	return nil
}

func TestAggregatorMirrorFailureIsNotFatal(t *testing.T) {
	primary := &recordingSink{name: "primary"}
	mirror := &recordingSink{name: "mirror", err: errors.New("bucket offline")}
	agg, err := NewAggregator(primary, nil, mirror)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	baseline := &domain.BaselineRecord{ID: "base-1", Snapshots: []domain.SystemSnapshot{{CPUPercent: 1}}}
	rec, err := agg.Persist(context.Background(), sampleRecord(), baseline)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if rec.BaselineID != "base-1" || !rec.Summary.HasBaseline {
		t.Fatalf("Persist() baseline id=%q has=%v", rec.BaselineID, rec.Summary.HasBaseline)
	}
	if len(primary.runs) != 1 {
		t.Fatalf("primary runs=%d, want 1", len(primary.runs))
	}
	if err := agg.PersistBaseline(context.Background(), *baseline, BaselineTarget{}); err != nil {
		t.Fatalf("PersistBaseline() error = %v", err)
	}
	if len(primary.baselines) != 1 {
		t.Fatalf("primary baselines=%d, want 1", len(primary.baselines))
	}
}

func TestAggregatorPrimaryFailureIsFatal(t *testing.T) {
	primary := &recordingSink{name: "file", err: ErrRecordExists}
	mirror := &recordingSink{name: "mirror"}
	agg, err := NewAggregator(primary, nil, mirror)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	if _, err := agg.Persist(context.Background(), sampleRecord(), nil); !errors.Is(err, ErrRecordExists) {
		t.Fatalf("Persist() error = %v, want ErrRecordExists", err)
	}
	if len(mirror.runs) != 0 {
		t.Fatalf("mirror written after primary failure")
	}
	if _, err := NewAggregator(nil, nil); err == nil {
		t.Fatalf("expected error without primary sink")
	}
}
