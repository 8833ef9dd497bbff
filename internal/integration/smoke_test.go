package integration

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"idfcore/internal/archive"
	blobcore "idfcore/internal/blob/core"
	"idfcore/internal/core"
	blobmemory "idfcore/internal/infra/blob/memory"
	"idfcore/internal/infra/blob/s3"
	"idfcore/internal/infra/persistence/memory"
	"idfcore/internal/infra/persistence/postgres"
	"idfcore/internal/infra/persistence/postgres/testutil"
	"idfcore/internal/infra/persistence/sqlite"
	"idfcore/internal/schema"
	"idfcore/internal/workspace"
	"idfcore/pkg/domain"
)

const catalogJSON = `{
  "version": "1.0",
  "types": [
    {"name": "OS:Building", "unique": true, "references": ["Buildings"],
     "fields": [{"name": "Name", "is_name": true, "required": true}]},
    {"name": "OS:ThermalZone", "references": ["ThermalZones"],
     "fields": [
       {"name": "Name", "is_name": true},
       {"name": "Multiplier", "kind": "integer", "min": 1},
       {"name": "Building", "kind": "object-list", "object_lists": ["Buildings"]}
     ]},
    {"name": "OS:Space",
     "fields": [
       {"name": "Name", "is_name": true},
       {"name": "Thermal Zone", "kind": "object-list", "object_lists": ["ThermalZones"], "required": true}
     ]}
  ]
}`

// TestIntegrationSmoke runs one write, archive and reload cycle against every
// snapshot backend paired with every blob backend.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()
	catalog, err := schema.LoadJSON(strings.NewReader(catalogJSON))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}

	snapshotVariants := []struct {
		name string
		open func(t *testing.T) domain.SnapshotStore
	}{
		{"memory", func(*testing.T) domain.SnapshotStore { return memory.NewStore() }},
		{"sqlite", func(t *testing.T) domain.SnapshotStore {
			s, err := sqlite.NewStore(ctx, filepath.Join(t.TempDir(), "ws.db"))
			if err != nil {
				t.Fatalf("sqlite.NewStore: %v", err)
			}
			return s
		}},
		{"postgres", func(t *testing.T) domain.SnapshotStore {
			db, _ := testutil.NewStubDB()
			restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
			defer restore()
			s, err := postgres.NewStore(ctx, "")
			if err != nil {
				t.Fatalf("postgres.NewStore: %v", err)
			}
			return s
		}},
	}
	blobVariants := []struct {
		name string
		open func() blobcore.Store
	}{
		{"memory", func() blobcore.Store { return blobmemory.New() }},
		{"s3", func() blobcore.Store { return s3.NewMockForTests() }},
	}

	for _, sv := range snapshotVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				snaps := sv.open(t)
				defer func() { _ = snaps.Close() }()
				arch := archive.NewArchiver(bv.open(), archive.WithCompression(archive.CompressionLZ4))

				writer := core.NewService(workspace.New(catalog), core.WithSnapshotStore(snaps), core.WithArchive(arch))
				hs, err := writer.AddRecords(ctx, []domain.RecordData{
					{Type: "OS:Building", Fields: []string{"HQ"}},
					{Type: "OS:ThermalZone", Fields: []string{"Core", "1", "HQ"}},
					{Type: "OS:Space", Fields: []string{"Office", "Core"}},
				})
				if err != nil {
					t.Fatalf("AddRecords: %v", err)
				}
				info, err := writer.ExportArchive(ctx, "smoke.idfs")
				if err != nil {
					t.Fatalf("ExportArchive: %v", err)
				}
				if info.Key != "smoke.idfs" || info.Size == 0 {
					t.Fatalf("unexpected archive info %+v", info)
				}

				reader := core.NewService(workspace.New(catalog), core.WithSnapshotStore(snaps), core.WithArchive(arch))
				if ok, err := reader.Load(ctx); err != nil || !ok {
					t.Fatalf("Load: ok=%v err=%v", ok, err)
				}
				rep, err := reader.Validate(ctx, domain.StrictnessFinal)
				if err != nil || !rep.Valid() {
					t.Fatalf("reloaded workspace should be valid: %v %s", err, rep)
				}

				if err := reader.RemoveRecords(ctx, hs); err != nil {
					t.Fatalf("RemoveRecords: %v", err)
				}
				if err := reader.ImportArchive(ctx, "smoke.idfs"); err != nil {
					t.Fatalf("ImportArchive: %v", err)
				}
				err = reader.View(ctx, func(st *workspace.Store) error {
					space, ok := st.Record(hs[2])
					if !ok {
						t.Errorf("space missing after archive import")
						return nil
					}
					if zone, ok := space.GetTarget(1); !ok || zone.Handle() != hs[1] {
						t.Errorf("pointer not restored from archive")
					}
					return st.CheckInvariants()
				})
				if err != nil {
					t.Fatalf("View: %v", err)
				}
			})
		}
	}
}
