package student

import (
	"context"
	"errors"
	"testing"
	"time"

	"nafes-passport/backend/internal/changelog"
	"nafes-passport/backend/internal/points"
	"nafes-passport/backend/internal/shared"
)

// setupService connects to a scratch database. Tests are skipped when
// MONGO_URI is not set.
func setupService(t *testing.T) (*Service, *changelog.Service) {
	mongoURI := shared.GetEnv("MONGO_URI", "")
	if mongoURI == "" {
		t.Skip("MONGO_URI not set; skipping student integration tests")
	}

	cfg := shared.MongoConfig{
		URI:            mongoURI,
		Database:       "nafes_passport_student_test",
		ConnectTimeout: 30 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
		MaxIdleTime:    60 * time.Second,
	}
	client, db, err := shared.ConnectMongoDB(&cfg)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() { shared.DisconnectMongoDB(client) })

	if err := db.Drop(context.Background()); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}

	logs := changelog.NewService(db)
	return NewService(db, logs), logs
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "  نورة سعد  ", shared.Grade3)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Name != "نورة سعد" {
		t.Errorf("Expected trimmed name, got %q", created.Name)
	}
	if created.Rank.ID != 1 {
		t.Errorf("Expected lowest rank for a new student, got %d", created.Rank.ID)
	}

	fetched, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Name != created.Name || fetched.Grade != shared.Grade3 {
		t.Errorf("Fetched student does not match created: %+v", fetched)
	}

	if _, err := svc.Create(ctx, "", shared.Grade3); err == nil {
		t.Error("Expected empty name to be rejected")
	}
	if _, err := svc.Create(ctx, "x", 5); err == nil {
		t.Error("Expected unsupported grade to be rejected")
	}
}

func TestService_UpdatePointsDerivesRank(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	st, err := svc.Create(ctx, "ليان فهد", shared.Grade6)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := svc.UpdatePoints(ctx, st.ID, shared.StationPoints{
		Arabic: 20, Math: 18, Science: 20, MorningAssembly: 19, NafesExams: 18,
	})
	if err != nil {
		t.Fatalf("UpdatePoints failed: %v", err)
	}
	if updated.TotalPoints != 95 {
		t.Errorf("Expected total 95, got %d", updated.TotalPoints)
	}
	if updated.Rank.ID != 7 {
		t.Errorf("Expected rank 7 at 95 points, got %d", updated.Rank.ID)
	}

	// Manual edits reject rather than clamp.
	_, err = svc.UpdatePoints(ctx, st.ID, shared.StationPoints{Arabic: 21})
	if err == nil {
		t.Fatal("Expected out-of-range manual edit to be rejected")
	}
	var verr *shared.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a validation error, got %v", err)
	}

	// The rejected edit must not have changed anything.
	after, err := svc.Get(ctx, st.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if after.TotalPoints != 95 {
		t.Errorf("Rejected edit mutated the student: total %d", after.TotalPoints)
	}
}

func TestService_RestoreChain(t *testing.T) {
	svc, logs := setupService(t)
	ctx := context.Background()

	st, err := svc.Create(ctx, "عبدالرحمن ناصر", shared.Grade6)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Two successive point states, each producing a snapshot-carrying entry.
	if _, err := svc.UpdatePoints(ctx, st.ID, shared.StationPoints{Arabic: 10}); err != nil {
		t.Fatalf("First update failed: %v", err)
	}
	if _, err := svc.UpdatePoints(ctx, st.ID, shared.StationPoints{Arabic: 10, Math: 12}); err != nil {
		t.Fatalf("Second update failed: %v", err)
	}

	entries, err := logs.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}

	// The second update's snapshot holds the arabic=10 state.
	var secondUpdateID string
	for _, e := range entries {
		if e.Action == shared.ActionUpdate && e.SnapshotBefore != nil && e.SnapshotBefore.Points.Arabic == 10 && e.SnapshotBefore.Points.Math == 0 {
			secondUpdateID = e.ID
			break
		}
	}
	if secondUpdateID == "" {
		t.Fatal("No update entry with the expected snapshot found")
	}

	restored, err := logs.Restore(ctx, secondUpdateID)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Points.Math != 0 || restored.Points.Arabic != 10 {
		t.Errorf("Restore did not bring back the earlier state: %+v", restored.Points)
	}

	// The restore entry itself carries the overwritten state, so restoring
	// it undoes the restore.
	entries, err = logs.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	var restoreEntryID string
	for _, e := range entries {
		if e.Action == shared.ActionRestore {
			restoreEntryID = e.ID
			if e.RestoredFrom != secondUpdateID {
				t.Errorf("Restore entry points at %q, want %q", e.RestoredFrom, secondUpdateID)
			}
			break
		}
	}
	if restoreEntryID == "" {
		t.Fatal("No restore entry found")
	}

	undone, err := logs.Restore(ctx, restoreEntryID)
	if err != nil {
		t.Fatalf("Restore of restore failed: %v", err)
	}
	if undone.Points.Math != 12 {
		t.Errorf("Expected math back at 12 after undoing the restore, got %d", undone.Points.Math)
	}
}

func TestService_AdjustPointsReport(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	st, err := svc.Create(ctx, "يوسف إبراهيم", shared.Grade3)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Grade 3 arabic ceiling is 30: an oversized add caps there.
	updated, report, err := svc.AdjustPoints(ctx, st.ID, points.Arabic, points.Increase, 40)
	if err != nil {
		t.Fatalf("AdjustPoints failed: %v", err)
	}
	if updated.Points.Arabic != 30 || !report.WasClamped || report.ActualDelta != 30 {
		t.Errorf("Unexpected clamp outcome: points=%d report=%+v", updated.Points.Arabic, report)
	}

	// A decrease below zero floors and still reports the clamp.
	updated, report, err = svc.AdjustPoints(ctx, st.ID, points.Math, points.Decrease, 10)
	if err != nil {
		t.Fatalf("AdjustPoints failed: %v", err)
	}
	if updated.Points.Math != 0 || !report.WasClamped || report.ActualDelta != 0 {
		t.Errorf("Unexpected floor outcome: points=%d report=%+v", updated.Points.Math, report)
	}

	if _, _, err := svc.AdjustPoints(ctx, st.ID, points.Arabic, points.Increase, -5); err == nil {
		t.Error("Expected negative magnitude to be rejected")
	}
}
