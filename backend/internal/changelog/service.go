// ============================================================================
// backend/internal/changelog/service.go
// Append-only audit trail for every student mutation, with restore.
// ============================================================================

package changelog

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nafes-passport/backend/internal/points"
	"nafes-passport/backend/internal/shared"
)

// MaxRecentEntries bounds the history listing; there is no pagination
// beyond this cap.
const MaxRecentEntries = 100

// Service owns the change_logs collection. Entries are written once and
// never edited; restore writes a fresh entry rather than touching the old
// one.
type Service struct {
	db          *mongo.Database
	logsCol     *mongo.Collection
	studentsCol *mongo.Collection
}

// NewService creates a new change log Service instance
func NewService(db *mongo.Database) *Service {
	return &Service{
		db:          db,
		logsCol:     db.Collection(shared.ChangeLogsCollection),
		studentsCol: db.Collection(shared.StudentsCollection),
	}
}

// Record appends one ledger entry. The entry's id and timestamp are
// assigned here; the snapshot, when present, is deep-copied and normalized
// before storage so the stored document is fully self-contained.
func (s *Service) Record(ctx context.Context, entry shared.ChangeLog) (shared.ChangeLog, error) {
	id, err := shared.NewID("log")
	if err != nil {
		return shared.ChangeLog{}, err
	}
	entry.ID = id
	if entry.Timestamp == "" {
		entry.Timestamp = shared.NowISO()
	}
	if entry.Changes == nil {
		entry.Changes = []shared.FieldDiff{}
	}
	if entry.SnapshotBefore != nil {
		snap := shared.CloneStudent(*entry.SnapshotBefore)
		entry.SnapshotBefore = &snap
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.logsCol.InsertOne(queryCtx, entry); err != nil {
		return shared.ChangeLog{}, fmt.Errorf("failed to write change log for student %s: %w", entry.StudentID, err)
	}
	return entry, nil
}

// RecordBestEffort is Record for mutation paths: a failed audit write is
// logged and swallowed, never surfaced to the caller. The audit trail is
// not part of the mutation's atomicity contract.
func (s *Service) RecordBestEffort(ctx context.Context, entry shared.ChangeLog) {
	if _, err := s.Record(ctx, entry); err != nil {
		log.Printf("Warning: change log write failed (action=%s student=%s): %v", entry.Action, entry.StudentID, err)
	}
}

// ListRecent returns up to limit entries, newest first. Limits above
// MaxRecentEntries (or non-positive) are capped to MaxRecentEntries.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]shared.ChangeLog, error) {
	if limit <= 0 || limit > MaxRecentEntries {
		limit = MaxRecentEntries
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	findOptions := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.logsCol.Find(queryCtx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query change logs: %w", err)
	}
	defer cursor.Close(queryCtx)

	entries := []shared.ChangeLog{}
	for cursor.Next(queryCtx) {
		var entry shared.ChangeLog
		if err := cursor.Decode(&entry); err != nil {
			log.Printf("Warning: skipping undecodable change log entry: %v", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Get retrieves a single ledger entry by id.
func (s *Service) Get(ctx context.Context, entryID string) (shared.ChangeLog, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var entry shared.ChangeLog
	err := s.logsCol.FindOne(queryCtx, bson.M{"_id": entryID}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return shared.ChangeLog{}, fmt.Errorf("change log %s: %w", entryID, shared.ErrNotFound)
		}
		return shared.ChangeLog{}, fmt.Errorf("failed to fetch change log %s: %w", entryID, err)
	}
	return entry, nil
}

// Restore writes an entry's stored snapshot back as the current student
// record, re-creating the document if the student was deleted, and appends
// a restore entry pointing at the source. Any entry carrying a snapshot can
// be restored, including an earlier restore entry.
func (s *Service) Restore(ctx context.Context, entryID string) (shared.Student, error) {
	entry, err := s.Get(ctx, entryID)
	if err != nil {
		return shared.Student{}, err
	}
	if entry.SnapshotBefore == nil {
		return shared.Student{}, &shared.ValidationError{Fields: []string{fmt.Sprintf("change log %s carries no snapshot", entryID)}}
	}

	restored := shared.CloneStudent(*entry.SnapshotBefore)
	restored.ID = entry.StudentID
	restored.UpdatedAt = shared.NowISO()

	// Capture the state being overwritten before the write so the restore
	// itself is undoable. Absent is fine: the student may have been deleted.
	var overwritten *shared.Student
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var current shared.Student
	findErr := s.studentsCol.FindOne(queryCtx, bson.M{"_id": entry.StudentID}).Decode(&current)
	if findErr == nil {
		overwritten = &current
	} else if findErr != mongo.ErrNoDocuments {
		return shared.Student{}, fmt.Errorf("failed to read student %s before restore: %w", entry.StudentID, findErr)
	}

	replaceOpts := options.Replace().SetUpsert(true)
	if _, err := s.studentsCol.ReplaceOne(queryCtx, bson.M{"_id": entry.StudentID}, restored, replaceOpts); err != nil {
		return shared.Student{}, fmt.Errorf("failed to restore student %s: %w", entry.StudentID, err)
	}

	s.RecordBestEffort(ctx, shared.ChangeLog{
		Action:      shared.ActionRestore,
		StudentID:   entry.StudentID,
		StudentName: entry.StudentName,
		Changes: []shared.FieldDiff{{
			Field:    "all",
			OldValue: "current",
			NewValue: fmt.Sprintf("restored from %s", entry.Timestamp),
		}},
		SnapshotBefore: overwritten,
		RestoredFrom:   entry.ID,
	})

	return restored, nil
}

// PointDiffs shapes the field-level diff list for a point mutation: one
// diff per changed station plus one for the recomputed total. Unchanged
// fields are omitted.
func PointDiffs(oldPoints, newPoints shared.StationPoints, oldTotal, newTotal, grade int) []shared.FieldDiff {
	diffs := []shared.FieldDiff{}
	for _, subject := range points.Subjects(grade) {
		oldValue := points.Value(oldPoints, subject)
		newValue := points.Value(newPoints, subject)
		if oldValue != newValue {
			diffs = append(diffs, shared.FieldDiff{
				Field:    fmt.Sprintf("points.%s", subject),
				OldValue: oldValue,
				NewValue: newValue,
			})
		}
	}
	if oldTotal != newTotal {
		diffs = append(diffs, shared.FieldDiff{
			Field:    "totalPoints",
			OldValue: oldTotal,
			NewValue: newTotal,
		})
	}
	return diffs
}
