package dataset

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/backend"
	"github.com/jgarte/gn-proxy/dispatch"
	"github.com/jgarte/gn-proxy/resource"
)

func TestRegisterTypes(t *testing.T) {
	r := access.NewRegistry()
	if err := RegisterTypes(r); err != nil {
		t.Fatalf("register types: %v", err)
	}

	for _, name := range []string{TypePublish, TypeProbe, TypeGeno} {
		set, err := r.Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		data, ok := set.Branch("data")
		if !ok {
			t.Fatalf("%s has no data branch", name)
		}
		if data.At(0).Name != "no-access" {
			t.Errorf("%s data branch starts with %q", name, data.At(0).Name)
		}
		admin, ok := set.Branch("admin")
		if !ok {
			t.Fatalf("%s has no admin branch", name)
		}
		if admin.Top() != 2 || admin.At(2).Name != "edit-admins" {
			t.Errorf("%s admin branch = %v", name, admin.Names(admin.Top()))
		}
	}

	// Publish additionally carries a metadata branch.
	set, _ := r.Lookup(TypePublish)
	if _, ok := set.Branch("metadata"); !ok {
		t.Error("publish type has no metadata branch")
	}

	// Registering twice is a configuration error.
	if err := RegisterTypes(r); !errors.Is(err, access.ErrDuplicateType) {
		t.Errorf("second registration: got %v", err)
	}
}

func fixtureBackend(t *testing.T, path string) backend.Querier {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE Strain (Id INTEGER PRIMARY KEY, Name TEXT)`,
		`CREATE TABLE PublishData (Id INTEGER, StrainId INTEGER, value REAL)`,
		`CREATE TABLE PublishSE (DataId INTEGER, StrainId INTEGER, error REAL)`,
		`CREATE TABLE Publication (Id INTEGER PRIMARY KEY, Title TEXT, Authors TEXT, Year INTEGER)`,
		`CREATE TABLE PublishXRef (Id INTEGER, InbredSetId INTEGER, PublicationId INTEGER)`,
		`CREATE TABLE ProbeSetData (Id INTEGER, StrainId INTEGER, value REAL)`,
		`CREATE TABLE GenoData (Id INTEGER, StrainId INTEGER, value REAL)`,

		`INSERT INTO Strain VALUES (1, 'BXD1'), (2, 'BXD2')`,
		`INSERT INTO PublishData VALUES (10007, 1, 54.1), (10007, 2, 61.4)`,
		`INSERT INTO PublishSE VALUES (10007, 1, 2.9)`,
		`INSERT INTO Publication VALUES (100, 'Mapping study', 'Smith J', 2004)`,
		`INSERT INTO PublishXRef VALUES (10007, 1, 100)`,
		`INSERT INTO ProbeSetData VALUES (23, 1, 8.12), (23, 2, 8.98)`,
		`INSERT INTO GenoData VALUES (5, 1, 1), (5, 2, -1)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return backend.NewExecutor(db)
}

func TestPublishViewData(t *testing.T) {
	dbPath := "test_dataset_publish.db"
	defer os.Remove(dbPath)
	qx := fixtureBackend(t, dbPath)

	result, err := publishViewData(context.Background(), qx,
		access.Params{KeyDataset: "1", KeyTrait: "10007"}, nil)
	if err != nil {
		t.Fatalf("view data: %v", err)
	}
	rows := result.([]backend.Row)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != "BXD1" {
		t.Errorf("rows[0] = %v", rows[0])
	}
	// BXD2 has no standard error; the LEFT JOIN yields NULL → nil.
	if rows[1][2] != nil {
		t.Errorf("missing SE = %#v, want nil", rows[1][2])
	}
}

func TestPublishViewMetadata(t *testing.T) {
	dbPath := "test_dataset_metadata.db"
	defer os.Remove(dbPath)
	qx := fixtureBackend(t, dbPath)

	result, err := publishViewMetadata(context.Background(), qx,
		access.Params{KeyDataset: "1", KeyTrait: "10007"}, nil)
	if err != nil {
		t.Fatalf("view metadata: %v", err)
	}
	rows := result.([]backend.Row)
	if len(rows) != 1 || rows[0][0] != "Mapping study" {
		t.Errorf("rows = %v", rows)
	}
}

func TestProbeAndGenoViewData(t *testing.T) {
	dbPath := "test_dataset_probe_geno.db"
	defer os.Remove(dbPath)
	qx := fixtureBackend(t, dbPath)

	result, err := probeViewData(context.Background(), qx, access.Params{KeyTrait: "23"}, nil)
	if err != nil {
		t.Fatalf("probe view: %v", err)
	}
	if rows := result.([]backend.Row); len(rows) != 2 || rows[0][0] != "BXD1" {
		t.Errorf("probe rows = %v", rows)
	}

	result, err = genoViewData(context.Background(), qx, access.Params{KeyTrait: "5"}, nil)
	if err != nil {
		t.Fatalf("geno view: %v", err)
	}
	if rows := result.([]backend.Row); len(rows) != 2 {
		t.Errorf("geno rows = %v", rows)
	}
}

// The server runs without a dataset backend when no DSN is configured; a
// permitted view must then fail with a handler error, not panic.
func TestViewWithoutBackend(t *testing.T) {
	reg := access.NewRegistry()
	if err := RegisterTypes(reg); err != nil {
		t.Fatal(err)
	}
	store := resource.NewMemoryStore()
	d := dispatch.New(reg, store)

	ctx := context.Background()
	created, err := d.AddResource(ctx, &resource.Resource{
		ID:          "probe-23",
		Type:        TypeProbe,
		Data:        map[string]string{KeyTrait: "23"},
		DefaultMask: resource.Mask{"data": 1},
	})
	if err != nil || !created {
		t.Fatalf("add resource: created=%v err=%v", created, err)
	}

	_, err = d.Execute(ctx, "probe-23", "alice", "data", "view", nil)
	if !errors.Is(err, access.ErrHandler) {
		t.Fatalf("expected ErrHandler, got %v", err)
	}
	if !errors.Is(err, backend.ErrNotConfigured) {
		t.Errorf("cause lost: %v", err)
	}
}

// End to end: a dispatcher over the registered types runs a probe view
// against the fixture backend for a user whose default mask permits it.
func TestDispatchThroughDatasetTypes(t *testing.T) {
	dbPath := "test_dataset_dispatch.db"
	defer os.Remove(dbPath)
	qx := fixtureBackend(t, dbPath)

	reg := access.NewRegistry()
	if err := RegisterTypes(reg); err != nil {
		t.Fatal(err)
	}
	store := resource.NewMemoryStore()
	d := dispatch.New(reg, store, dispatch.WithBackend(qx))

	ctx := context.Background()
	created, err := d.AddResource(ctx, &resource.Resource{
		ID:          "probe-23",
		Type:        TypeProbe,
		OwnerID:     "owner1",
		Data:        map[string]string{KeyDataset: "HC_M2_0606_P", KeyTrait: "23"},
		DefaultMask: resource.Mask{"data": 1, "admin": 0},
	})
	if err != nil || !created {
		t.Fatalf("add resource: created=%v err=%v", created, err)
	}

	result, err := d.Execute(ctx, "probe-23", "alice", "data", "view", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows := result.([]backend.Row)
	if len(rows) != 2 || rows[0][0] != "BXD1" {
		t.Errorf("rows = %v", rows)
	}

	// The same user holds no admin privilege.
	_, err = d.Execute(ctx, "probe-23", "alice", "admin", "edit-access", nil)
	if !errors.Is(err, access.ErrPermissionDenied) {
		t.Errorf("admin action: got %v", err)
	}
}
