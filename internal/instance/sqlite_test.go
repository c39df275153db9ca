package instance

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/bundlehost/internal/storage"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewSQLiteStore(db)
}

func TestSQLiteCreateGet(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	in := &Instance{
		ID:            "inst-1",
		BundleID:      "crm",
		BundleVersion: "1.0.0",
		Properties:    Map{"name": String("acme"), "tier": Number(2)},
	}
	if err := store.Create(ctx, in); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "inst-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected instance, got nil")
	}
	if got.BundleID != "crm" || got.BundleVersion != "1.0.0" {
		t.Errorf("unexpected bundle fields: %+v", got)
	}
	if got.Properties["name"] != String("acme") {
		t.Errorf("name = %#v", got.Properties["name"])
	}
	if got.Properties["tier"] != Number(2) {
		t.Errorf("tier = %#v", got.Properties["tier"])
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not populated")
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	store := setupSQLiteStore(t)

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing id, got %+v", got)
	}
}

func TestSQLiteUpdate(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	in := &Instance{ID: "inst-1", BundleID: "crm", BundleVersion: "1.0.0", Properties: Map{"v": Number(1)}}
	if err := store.Create(ctx, in); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	in.BundleVersion = "2.0.0"
	in.Properties = Map{"v": Number(2)}
	ok, err := store.Update(ctx, in)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !ok {
		t.Fatal("Update returned false for existing id")
	}

	got, err := store.Get(ctx, "inst-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.BundleVersion != "2.0.0" || got.Properties["v"] != Number(2) {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestSQLiteUpdateMissing(t *testing.T) {
	store := setupSQLiteStore(t)

	ok, err := store.Update(context.Background(), &Instance{ID: "ghost", BundleID: "crm"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ok {
		t.Error("Update returned true for unknown id")
	}
}

func TestSQLiteGetPage(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		in := &Instance{
			ID:         fmt.Sprintf("inst-%03d", i),
			BundleID:   "crm",
			Properties: Map{"seq": Number(i)},
		}
		if err := store.Create(ctx, in); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	// A second bundle must not bleed into crm's pages.
	other := &Instance{ID: "other-1", BundleID: "hr", Properties: Map{}}
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	seen := make(map[string]bool)
	page := 1
	for {
		items, err := store.GetPage(ctx, "crm", page, 10)
		if err != nil {
			t.Fatalf("GetPage %d failed: %v", page, err)
		}
		if len(items) == 0 {
			break
		}
		for _, in := range items {
			if in.BundleID != "crm" {
				t.Errorf("page %d leaked instance from bundle %q", page, in.BundleID)
			}
			if seen[in.ID] {
				t.Errorf("instance %s returned twice", in.ID)
			}
			seen[in.ID] = true
		}
		page++
	}

	if len(seen) != 25 {
		t.Errorf("saw %d instances, want 25", len(seen))
	}
	if page != 4 {
		t.Errorf("terminated on page %d, want 4", page)
	}

	n, err := store.CountByBundle(ctx, "crm")
	if err != nil {
		t.Fatalf("CountByBundle failed: %v", err)
	}
	if n != 25 {
		t.Errorf("CountByBundle = %d, want 25", n)
	}
}

func TestSQLiteGetPageValidation(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.GetPage(ctx, "crm", 0, 10); err == nil {
		t.Error("expected error for page 0")
	}
	if _, err := store.GetPage(ctx, "crm", 1, MaxPageSize+1); err == nil {
		t.Error("expected error for oversized page")
	}
	if _, err := store.GetPage(ctx, "", 1, 10); err == nil {
		t.Error("expected error for empty bundle id")
	}
}
