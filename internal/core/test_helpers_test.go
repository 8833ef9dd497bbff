package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"idfcore/internal/schema"
	"idfcore/internal/workspace"
	"idfcore/pkg/domain"
)

const (
	tBuilding domain.TypeID = "OS:Building"
	tZone     domain.TypeID = "OS:ThermalZone"
	tSpace    domain.TypeID = "OS:Space"
)

const (
	zoneMultiplier = 1
	zoneBuilding   = 2
	spaceZone      = 1
)

func testCatalog(t testing.TB) *schema.Catalog {
	t.Helper()
	c, err := schema.NewBuilder().
		Type(schema.TypeSpec{Name: tBuilding, Unique: true, References: []string{"Buildings"},
			Fields: []schema.FieldDef{{Name: "Name", IsName: true, Required: true}}}).
		Type(schema.TypeSpec{Name: tZone, References: []string{"ThermalZones"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true},
				{Name: "Multiplier", Kind: domain.FieldInteger, Min: schema.Float(1)},
				{Name: "Building", Kind: domain.FieldObjectList, ObjectLists: []string{"Buildings"}},
			}}).
		Type(schema.TypeSpec{Name: tSpace, References: []string{"Spaces"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true},
				{Name: "Thermal Zone", Kind: domain.FieldObjectList, Required: true, ObjectLists: []string{"ThermalZones"}},
			}}).
		Build()
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return c
}

func rd(typ domain.TypeID, fields ...string) domain.RecordData {
	return domain.RecordData{Type: typ, Fields: fields}
}

func newTestService(t testing.TB, opts ...Option) *Service {
	t.Helper()
	return NewService(workspace.New(testCatalog(t)), opts...)
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (c *captureLogger) add(level, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{level: level, msg: msg, args: args})
}

func (c *captureLogger) Debug(msg string, args ...any) { c.add("debug", msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.add("info", msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.add("warn", msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.add("error", msg, args) }

func (c *captureLogger) count(level string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls   []metricsCall
	records int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) SetRecords(n int) { c.records = n }

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

// failingSnapshotStore fails every Save.
type failingSnapshotStore struct{ saves int }

var errSaveFailed = errors.New("save failed")

func (f *failingSnapshotStore) Save(context.Context, domain.Snapshot) error {
	f.saves++
	return errSaveFailed
}

func (f *failingSnapshotStore) Load(context.Context) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, fmt.Errorf("load: %w", errSaveFailed)
}

func (f *failingSnapshotStore) Close() error { return nil }

// stepClock advances one millisecond per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}
