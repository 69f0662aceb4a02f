package repository

import (
	"context"
	"errors"
	"testing"

	"voltgrid/internal/models"
)

func TestStationUpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewStationRepository(db)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "cs-1"); !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("expected ErrStationNotFound, got %v", err)
	}

	station := &models.Station{
		ID:              "cs-1",
		Vendor:          "VoltGrid",
		Model:           "VG-200",
		FirmwareVersion: "1.2.3",
	}
	if err := repo.Upsert(ctx, station); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.Get(ctx, "cs-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Vendor != "VoltGrid" || got.Model != "VG-200" || got.FirmwareVersion != "1.2.3" {
		t.Fatalf("unexpected station: %+v", got)
	}
	if got.LastSeen.IsZero() || got.CreatedAt.IsZero() {
		t.Fatalf("expected timestamps set: %+v", got)
	}

	station.FirmwareVersion = "1.3.0"
	if err := repo.Upsert(ctx, station); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = repo.Get(ctx, "cs-1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.FirmwareVersion != "1.3.0" {
		t.Fatalf("expected firmware updated, got %s", got.FirmwareVersion)
	}
}

func TestStationTouchKeepsMetadata(t *testing.T) {
	db := newTestDB(t)
	repo := NewStationRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &models.Station{ID: "cs-1", Vendor: "VoltGrid", Model: "VG-200"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Touch(ctx, "cs-1"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := repo.Get(ctx, "cs-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Vendor != "VoltGrid" || got.Model != "VG-200" {
		t.Fatalf("touch must not blank metadata: %+v", got)
	}

	// Touch also registers an unknown station.
	if err := repo.Touch(ctx, "cs-2"); err != nil {
		t.Fatalf("touch new station: %v", err)
	}
	if _, err := repo.Get(ctx, "cs-2"); err != nil {
		t.Fatalf("get touched station: %v", err)
	}
}

func TestStationCredentials(t *testing.T) {
	db := newTestDB(t)
	repo := NewStationRepository(db)
	ctx := context.Background()

	if _, err := repo.GetPasswordHash(ctx, "cs-1"); !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("expected ErrStationNotFound, got %v", err)
	}

	// Provisioning credentials before the first report creates the station.
	if err := repo.SetPasswordHash(ctx, "cs-1", "hash-1"); err != nil {
		t.Fatalf("set hash: %v", err)
	}
	if _, err := repo.Get(ctx, "cs-1"); err != nil {
		t.Fatalf("station not registered by credential write: %v", err)
	}

	hash, err := repo.GetPasswordHash(ctx, "cs-1")
	if err != nil {
		t.Fatalf("get hash: %v", err)
	}
	if hash != "hash-1" {
		t.Fatalf("expected hash-1, got %s", hash)
	}

	if err := repo.SetPasswordHash(ctx, "cs-1", "hash-2"); err != nil {
		t.Fatalf("rotate hash: %v", err)
	}
	hash, _ = repo.GetPasswordHash(ctx, "cs-1")
	if hash != "hash-2" {
		t.Fatalf("expected rotated hash, got %s", hash)
	}
}
