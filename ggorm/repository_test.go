package ggorm

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/audit"
	"github.com/jgarte/gn-proxy/resource"
)

func openTestRepo(t *testing.T, path string) *Repository {
	t.Helper()
	repo, err := Open("sqlite", path, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	return repo
}

func TestRepositoryResourceRoundTrip(t *testing.T) {
	dbPath := "test_repo_resource.db"
	defer os.Remove(dbPath)
	repo := openTestRepo(t, dbPath)
	ctx := context.Background()

	res := &resource.Resource{
		ID:          "r1",
		Type:        "dataset-publish",
		OwnerID:     "owner1",
		Data:        map[string]string{"dataset": "BXDPublish", "trait": "10007"},
		DefaultMask: resource.Mask{"data": 1, "metadata": 1},
		UserMasks:   map[string]resource.Mask{"bob": {"data": 0}},
	}
	created, err := repo.CreateIfAbsent(ctx, res)
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Type != res.Type || got.OwnerID != res.OwnerID {
		t.Errorf("got %+v", got)
	}
	if got.Data["trait"] != "10007" {
		t.Errorf("data = %v", got.Data)
	}
	if got.DefaultMask["metadata"] != 1 {
		t.Errorf("default mask = %v", got.DefaultMask)
	}
	if level, ok := got.MaskLevel("bob", "data"); !ok || level != 0 {
		t.Errorf("bob mask = %d ok=%v", level, ok)
	}
}

func TestRepositoryCreateIfAbsentIdempotent(t *testing.T) {
	dbPath := "test_repo_idem.db"
	defer os.Remove(dbPath)
	repo := openTestRepo(t, dbPath)
	ctx := context.Background()

	first := &resource.Resource{ID: "r1", Type: "dataset-geno", DefaultMask: resource.Mask{"data": 1}}
	if created, err := repo.CreateIfAbsent(ctx, first); err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	second := &resource.Resource{ID: "r1", Type: "dataset-probe", DefaultMask: resource.Mask{"data": 0}}
	created, err := repo.CreateIfAbsent(ctx, second)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Error("second create reported created=true")
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != "dataset-geno" || got.DefaultMask["data"] != 1 {
		t.Errorf("stored record was overwritten: %+v", got)
	}
}

func TestRepositoryGetUnknown(t *testing.T) {
	dbPath := "test_repo_unknown.db"
	defer os.Remove(dbPath)
	repo := openTestRepo(t, dbPath)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, access.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestRepositoryAtomicUpdate(t *testing.T) {
	dbPath := "test_repo_update.db"
	defer os.Remove(dbPath)
	repo := openTestRepo(t, dbPath)
	ctx := context.Background()

	res := &resource.Resource{ID: "r1", Type: "dataset-probe", DefaultMask: resource.Mask{"data": 0}}
	if _, err := repo.CreateIfAbsent(ctx, res); err != nil {
		t.Fatal(err)
	}

	updated, err := repo.AtomicUpdate(ctx, "r1", func(r *resource.Resource) error {
		r.Grant("bob", "data", 1)
		return nil
	})
	if err != nil {
		t.Fatalf("atomic update: %v", err)
	}
	if level, ok := updated.MaskLevel("bob", "data"); !ok || level != 1 {
		t.Errorf("returned mask level = %d ok=%v", level, ok)
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if level, ok := got.MaskLevel("bob", "data"); !ok || level != 1 {
		t.Error("grant was not persisted")
	}

	// Mutator errors roll the transaction back.
	boom := errors.New("boom")
	_, err = repo.AtomicUpdate(ctx, "r1", func(r *resource.Resource) error {
		r.Revoke("bob", "data")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("mutator error not surfaced: %v", err)
	}
	got, _ = repo.Get(ctx, "r1")
	if level, ok := got.MaskLevel("bob", "data"); !ok || level != 1 {
		t.Error("rolled-back update was applied")
	}

	_, err = repo.AtomicUpdate(ctx, "ghost", func(r *resource.Resource) error { return nil })
	if !errors.Is(err, access.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestRepositoryAuditEvents(t *testing.T) {
	dbPath := "test_repo_audit.db"
	defer os.Remove(dbPath)
	repo := openTestRepo(t, dbPath)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	events := []*audit.Event{
		{ID: "e1", Type: audit.EventAccessDenied, ActorID: "alice", ResourceID: "r1", Branch: "data", Action: "view", Status: "denied", Message: "permission denied", CreatedAt: base},
		{ID: "e2", Type: audit.EventAccessGranted, ActorID: "owner1", ResourceID: "r1", Branch: "data", Action: "view", Status: "success", CreatedAt: base.Add(time.Second)},
		{ID: "e3", Type: audit.EventMaskGranted, ActorID: "owner1", ResourceID: "r2", Branch: "data", Status: "success", Metadata: map[string]any{"user": "bob", "level": 1}, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range events {
		if err := repo.SaveEvent(ctx, e); err != nil {
			t.Fatalf("save %s: %v", e.ID, err)
		}
	}

	got, err := repo.Query(ctx, audit.Filter{ResourceID: "r1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("events out of order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Message != "permission denied" {
		t.Errorf("message = %q", got[0].Message)
	}

	got, err = repo.Query(ctx, audit.Filter{Types: []string{audit.EventMaskGranted}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Metadata["user"] != "bob" {
		t.Errorf("mask events = %+v", got)
	}

	got, err = repo.Query(ctx, audit.Filter{ActorID: "owner1", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("limit ignored: got %d events", len(got))
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn", nil); err == nil {
		t.Error("unknown driver should fail")
	}
}
