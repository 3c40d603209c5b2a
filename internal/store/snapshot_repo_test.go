package store

import (
	"context"
	"testing"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

func TestSnapshotRepo_SaveAndGetLatest(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := &SnapshotRepo{}
	now := time.Now().Unix()

	bodies := []string{`{"stage":"INTAKE"}`, `{"stage":"UNDERSTAND"}`}
	stages := []domain.Stage{domain.StageIntake, domain.StageUnderstand}
	for i, body := range bodies {
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		snap := domain.ContextSnapshot{
			TicketID:     "T-1",
			Stage:        stages[i],
			SnapshotJSON: body,
			CreatedAt:    now + int64(i),
		}
		if err := repo.SaveTx(ctx, tx, snap); err != nil {
			t.Fatalf("SaveTx: %v", err)
		}
		tx.Commit()
	}

	got, err := repo.GetLatest(ctx, db, "T-1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got == nil {
		t.Fatal("GetLatest returned nil")
	}
	if got.Stage != domain.StageUnderstand {
		t.Errorf("Stage = %q, want UNDERSTAND", got.Stage)
	}
	if got.Checksum != Checksum(got.SnapshotJSON) {
		t.Error("stored checksum does not match snapshot body")
	}

	all, err := repo.ListByTicket(ctx, db, "T-1")
	if err != nil {
		t.Fatalf("ListByTicket: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(all))
	}
}

func TestSnapshotRepo_GetLatest_NoSnapshot(t *testing.T) {
	db := testDB(t)
	repo := &SnapshotRepo{}

	got, err := repo.GetLatest(context.Background(), db, "no-such-ticket")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil snapshot, got %+v", got)
	}
}

func TestSnapshotRepo_CorruptChecksum(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := &SnapshotRepo{}

	tx, _ := db.Begin()
	snap := domain.ContextSnapshot{
		TicketID:     "T-2",
		Stage:        domain.StageIntake,
		SnapshotJSON: `{"stage":"INTAKE"}`,
		Checksum:     "deadbeef",
		CreatedAt:    time.Now().Unix(),
	}
	if err := repo.SaveTx(ctx, tx, snap); err != nil {
		t.Fatalf("SaveTx: %v", err)
	}
	tx.Commit()

	_, err := repo.GetLatest(ctx, db, "T-2")
	if err != domain.ErrSnapshotCorrupt {
		t.Fatalf("err = %v, want ErrSnapshotCorrupt", err)
	}
}
