// ============================================================================
// backend/internal/student/service.go
// Student roster CRUD, point updates, and bulk orchestration.
// ============================================================================

package student

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"nafes-passport/backend/internal/changelog"
	"nafes-passport/backend/internal/points"
	"nafes-passport/backend/internal/shared"
)

// Stamp tier names accepted by SetStamp.
const (
	StampSilver  = "silver"
	StampGold    = "gold"
	StampDiamond = "diamond"
)

// Service owns the students collection. Every mutation recomputes the
// derived total and rank from the point map before writing, and appends a
// change log entry whose snapshot was captured before the write.
type Service struct {
	db          *mongo.Database
	studentsCol *mongo.Collection
	logs        *changelog.Service
}

// NewService creates a new student Service instance
func NewService(db *mongo.Database, logs *changelog.Service) *Service {
	return &Service{
		db:          db,
		studentsCol: db.Collection(shared.StudentsCollection),
		logs:        logs,
	}
}

// List returns the roster ordered by total points descending. A grade of 0
// returns both grades.
func (s *Service) List(ctx context.Context, grade int) ([]shared.Student, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if grade != 0 {
		filter["grade"] = grade
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "totalPoints", Value: -1}, {Key: "name", Value: 1}})

	cursor, err := s.studentsCol.Find(queryCtx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer cursor.Close(queryCtx)

	students := []shared.Student{}
	for cursor.Next(queryCtx) {
		var st shared.Student
		if err := cursor.Decode(&st); err != nil {
			log.Printf("Warning: skipping undecodable student document: %v", err)
			continue
		}
		students = append(students, st)
	}
	return students, nil
}

// Get retrieves one student by id.
func (s *Service) Get(ctx context.Context, id string) (shared.Student, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var st shared.Student
	err := s.studentsCol.FindOne(queryCtx, bson.M{"_id": id}).Decode(&st)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return shared.Student{}, fmt.Errorf("student %s: %w", id, shared.ErrNotFound)
		}
		return shared.Student{}, fmt.Errorf("failed to fetch student %s: %w", id, err)
	}
	return st, nil
}

// Create adds a new student with zeroed points, the lowest rank, and no
// stamps, then records an add entry (no snapshot: there is no before state).
func (s *Service) Create(ctx context.Context, name string, grade int) (shared.Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.Student{}, &shared.ValidationError{Fields: []string{"name: must not be empty"}}
	}
	if grade != shared.Grade3 && grade != shared.Grade6 {
		return shared.Student{}, &shared.ValidationError{Fields: []string{fmt.Sprintf("grade: %d is not a supported grade", grade)}}
	}

	id, err := shared.NewID("student")
	if err != nil {
		return shared.Student{}, err
	}

	now := shared.NowISO()
	st := shared.Student{
		ID:          id,
		Name:        name,
		Grade:       grade,
		Points:      shared.StationPoints{},
		TotalPoints: 0,
		Rank:        points.RankFor(0),
		Stamps:      shared.Stamps{},
		ViewCount:   0,
		Comments:    []shared.Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.studentsCol.InsertOne(queryCtx, st); err != nil {
		return shared.Student{}, fmt.Errorf("failed to create student: %w", err)
	}

	s.logs.RecordBestEffort(ctx, shared.ChangeLog{
		Action:      shared.ActionAdd,
		StudentID:   id,
		StudentName: name,
		Changes: []shared.FieldDiff{
			{Field: "name", OldValue: nil, NewValue: name},
			{Field: "grade", OldValue: nil, NewValue: grade},
		},
	})

	return st, nil
}

// UpdatePoints replaces the whole point map from a manual edit. Values
// outside the grade's legal ranges are rejected with per-field messages;
// this path never clamps, so a typo is surfaced instead of silently fixed.
func (s *Service) UpdatePoints(ctx context.Context, id string, newPoints shared.StationPoints) (shared.Student, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return shared.Student{}, err
	}

	if errs := points.Validate(newPoints, before.Grade); len(errs) > 0 {
		return shared.Student{}, &shared.ValidationError{Fields: errs}
	}

	return s.writePoints(ctx, before, newPoints, shared.ActionUpdate, nil)
}

// AdjustPoints applies one signed, clamped delta to a single subject and
// returns the clamp report alongside the updated student.
func (s *Service) AdjustPoints(ctx context.Context, id string, subject points.Subject, direction points.Direction, magnitude int) (shared.Student, points.Report, error) {
	if magnitude < 0 {
		return shared.Student{}, points.Report{}, &shared.ValidationError{Fields: []string{fmt.Sprintf("points: %d must not be negative", magnitude)}}
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return shared.Student{}, points.Report{}, err
	}

	report := points.ClampWithReport(points.Value(before.Points, subject), subject, direction, magnitude, before.Grade)

	newPoints := before.Points
	points.Set(&newPoints, subject, report.NewValue)

	updated, err := s.writePoints(ctx, before, newPoints, shared.ActionUpdate, nil)
	if err != nil {
		return shared.Student{}, points.Report{}, err
	}
	return updated, report, nil
}

// writePoints recomputes total and rank, persists the new point map, and
// appends the ledger entry. The before record passed in is the snapshot;
// it was read prior to the write, preserving the required ordering.
func (s *Service) writePoints(ctx context.Context, before shared.Student, newPoints shared.StationPoints, action string, bulk *shared.BulkOperation) (shared.Student, error) {
	newTotal := points.Total(newPoints, before.Grade)
	newRank := points.RankFor(newTotal)
	now := shared.NowISO()

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"points":      newPoints,
		"totalPoints": newTotal,
		"rank":        newRank,
		"updatedAt":   now,
	}}
	if _, err := s.studentsCol.UpdateOne(queryCtx, bson.M{"_id": before.ID}, update); err != nil {
		return shared.Student{}, fmt.Errorf("failed to update points for student %s: %w", before.ID, err)
	}

	snapshot := before
	s.logs.RecordBestEffort(ctx, shared.ChangeLog{
		Action:         action,
		StudentID:      before.ID,
		StudentName:    before.Name,
		Changes:        changelog.PointDiffs(before.Points, newPoints, before.TotalPoints, newTotal, before.Grade),
		SnapshotBefore: &snapshot,
		BulkOperation:  bulk,
	})

	after := before
	after.Points = newPoints
	after.TotalPoints = newTotal
	after.Rank = newRank
	after.UpdatedAt = now
	return after, nil
}

// SetStamp manually grants or revokes one stamp tier. Manual overrides are
// authoritative: nothing recomputes stamps except RecomputeStamps.
func (s *Service) SetStamp(ctx context.Context, id, tier string, granted bool) (shared.Student, error) {
	if tier != StampSilver && tier != StampGold && tier != StampDiamond {
		return shared.Student{}, &shared.ValidationError{Fields: []string{fmt.Sprintf("stamp: %q is not a known tier", tier)}}
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return shared.Student{}, err
	}

	newStamps := before.Stamps
	var old bool
	switch tier {
	case StampSilver:
		old, newStamps.Silver = before.Stamps.Silver, granted
	case StampGold:
		old, newStamps.Gold = before.Stamps.Gold, granted
	case StampDiamond:
		old, newStamps.Diamond = before.Stamps.Diamond, granted
	}

	diffs := []shared.FieldDiff{}
	if old != granted {
		diffs = append(diffs, shared.FieldDiff{Field: "stamps." + tier, OldValue: old, NewValue: granted})
	}
	return s.writeStamps(ctx, before, newStamps, diffs)
}

// RecomputeStamps re-derives all three tiers from the current total. This
// is the only path that overwrites manual grants, and it runs only on an
// explicit request.
func (s *Service) RecomputeStamps(ctx context.Context, id string) (shared.Student, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return shared.Student{}, err
	}

	newStamps := points.StampsFor(before.TotalPoints)
	diffs := []shared.FieldDiff{}
	if before.Stamps.Silver != newStamps.Silver {
		diffs = append(diffs, shared.FieldDiff{Field: "stamps.silver", OldValue: before.Stamps.Silver, NewValue: newStamps.Silver})
	}
	if before.Stamps.Gold != newStamps.Gold {
		diffs = append(diffs, shared.FieldDiff{Field: "stamps.gold", OldValue: before.Stamps.Gold, NewValue: newStamps.Gold})
	}
	if before.Stamps.Diamond != newStamps.Diamond {
		diffs = append(diffs, shared.FieldDiff{Field: "stamps.diamond", OldValue: before.Stamps.Diamond, NewValue: newStamps.Diamond})
	}
	return s.writeStamps(ctx, before, newStamps, diffs)
}

func (s *Service) writeStamps(ctx context.Context, before shared.Student, newStamps shared.Stamps, diffs []shared.FieldDiff) (shared.Student, error) {
	now := shared.NowISO()

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"stamps": newStamps, "updatedAt": now}}
	if _, err := s.studentsCol.UpdateOne(queryCtx, bson.M{"_id": before.ID}, update); err != nil {
		return shared.Student{}, fmt.Errorf("failed to update stamps for student %s: %w", before.ID, err)
	}

	if len(diffs) > 0 {
		snapshot := before
		s.logs.RecordBestEffort(ctx, shared.ChangeLog{
			Action:         shared.ActionUpdate,
			StudentID:      before.ID,
			StudentName:    before.Name,
			Changes:        diffs,
			SnapshotBefore: &snapshot,
		})
	}

	after := before
	after.Stamps = newStamps
	after.UpdatedAt = now
	return after, nil
}

// AddComment appends a staff note to the student.
func (s *Service) AddComment(ctx context.Context, id, author, text string) (shared.Student, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return shared.Student{}, &shared.ValidationError{Fields: []string{"comment: text must not be empty"}}
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return shared.Student{}, err
	}

	commentID, err := shared.NewID("comment")
	if err != nil {
		return shared.Student{}, err
	}
	comment := shared.Comment{
		ID:        commentID,
		Text:      text,
		Author:    strings.TrimSpace(author),
		CreatedAt: shared.NowISO(),
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": comment.CreatedAt},
	}
	if _, err := s.studentsCol.UpdateOne(queryCtx, bson.M{"_id": id}, update); err != nil {
		return shared.Student{}, fmt.Errorf("failed to add comment to student %s: %w", id, err)
	}

	snapshot := before
	s.logs.RecordBestEffort(ctx, shared.ChangeLog{
		Action:         shared.ActionUpdate,
		StudentID:      id,
		StudentName:    before.Name,
		Changes:        []shared.FieldDiff{{Field: "comments", OldValue: len(before.Comments), NewValue: len(before.Comments) + 1}},
		SnapshotBefore: &snapshot,
	})

	after := before
	after.Comments = append(append([]shared.Comment{}, before.Comments...), comment)
	after.UpdatedAt = comment.CreatedAt
	return after, nil
}

// RemoveComment deletes one staff note by comment id.
func (s *Service) RemoveComment(ctx context.Context, id, commentID string) (shared.Student, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return shared.Student{}, err
	}

	found := false
	remaining := []shared.Comment{}
	for _, c := range before.Comments {
		if c.ID == commentID {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	if !found {
		return shared.Student{}, fmt.Errorf("comment %s on student %s: %w", commentID, id, shared.ErrNotFound)
	}

	now := shared.NowISO()
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"comments": remaining, "updatedAt": now}}
	if _, err := s.studentsCol.UpdateOne(queryCtx, bson.M{"_id": id}, update); err != nil {
		return shared.Student{}, fmt.Errorf("failed to remove comment from student %s: %w", id, err)
	}

	snapshot := before
	s.logs.RecordBestEffort(ctx, shared.ChangeLog{
		Action:         shared.ActionUpdate,
		StudentID:      id,
		StudentName:    before.Name,
		Changes:        []shared.FieldDiff{{Field: "comments", OldValue: len(before.Comments), NewValue: len(remaining)}},
		SnapshotBefore: &snapshot,
	})

	after := before
	after.Comments = remaining
	after.UpdatedAt = now
	return after, nil
}

// IncrementViews bumps the view counter. This is best-effort: a failure is
// logged and swallowed, a page view is not worth surfacing an error for.
func (s *Service) IncrementViews(ctx context.Context, id string) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{"$inc": bson.M{"viewCount": 1}}
	if _, err := s.studentsCol.UpdateOne(queryCtx, bson.M{"_id": id}, update); err != nil {
		log.Printf("Warning: failed to increment view count for student %s: %v", id, err)
	}
}

// Delete removes a student. The ledger entry carries the full pre-delete
// snapshot, so the delete is undoable through restore.
func (s *Service) Delete(ctx context.Context, id string) error {
	before, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := s.studentsCol.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete student %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("student %s: %w", id, shared.ErrNotFound)
	}

	snapshot := before
	s.logs.RecordBestEffort(ctx, shared.ChangeLog{
		Action:         shared.ActionDelete,
		StudentID:      id,
		StudentName:    before.Name,
		Changes:        []shared.FieldDiff{{Field: "all", OldValue: "exists", NewValue: "deleted"}},
		SnapshotBefore: &snapshot,
	})

	return nil
}

// BulkResult reports the outcome of a bulk points update.
type BulkResult struct {
	UpdatedStudents int `json:"updatedStudents"`
	RequestedPairs  int `json:"requestedPairs"`
	CappedPairs     int `json:"cappedPairs"`
}

// ApplyBulkUpdate applies one signed delta across the given subjects to
// every selected student. Each (student, subject) pair goes through the
// clamp, so a student already at a ceiling never fails the batch; the
// result reports how many pairs were capped so the caller can show one
// aggregate warning.
//
// Per-student writes fan out concurrently; there is no ordering between
// students. Within a student the snapshot is captured from the pre-update
// read, before the write is issued. On partial failure the batch is
// best-effort: committed students stay committed and the first error is
// returned alongside the counts for what did land.
func (s *Service) ApplyBulkUpdate(ctx context.Context, ids []string, subjects []points.Subject, direction points.Direction, magnitude int) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, &shared.ValidationError{Fields: []string{"students: select at least one student"}}
	}
	if len(subjects) == 0 {
		return BulkResult{}, &shared.ValidationError{Fields: []string{"subjects: select at least one subject"}}
	}
	if magnitude <= 0 {
		return BulkResult{}, &shared.ValidationError{Fields: []string{fmt.Sprintf("points: %d must be positive", magnitude)}}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.studentsCol.Find(queryCtx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return BulkResult{}, fmt.Errorf("failed to fetch students for bulk update: %w", err)
	}

	var selected []shared.Student
	for cursor.Next(queryCtx) {
		var st shared.Student
		if err := cursor.Decode(&st); err != nil {
			log.Printf("Warning: skipping undecodable student in bulk update: %v", err)
			continue
		}
		selected = append(selected, st)
	}
	cursor.Close(queryCtx)

	fieldNames := make([]string, len(subjects))
	for i, subject := range subjects {
		fieldNames[i] = string(subject)
	}
	bulk := shared.BulkOperation{
		Operation:        string(direction),
		Fields:           fieldNames,
		Points:           magnitude,
		AffectedStudents: len(selected),
	}

	var updated, capped int64
	var g errgroup.Group
	for _, st := range selected {
		before := st
		g.Go(func() error {
			newPoints := before.Points
			for _, subject := range subjects {
				report := points.ClampWithReport(points.Value(newPoints, subject), subject, direction, magnitude, before.Grade)
				points.Set(&newPoints, subject, report.NewValue)
				if report.WasClamped {
					atomic.AddInt64(&capped, 1)
				}
			}

			bulkCopy := bulk
			if _, err := s.writePoints(ctx, before, newPoints, shared.ActionBulkUpdate, &bulkCopy); err != nil {
				return err
			}
			atomic.AddInt64(&updated, 1)
			return nil
		})
	}
	err = g.Wait()

	return BulkResult{
		UpdatedStudents: int(atomic.LoadInt64(&updated)),
		RequestedPairs:  len(selected) * len(subjects),
		CappedPairs:     int(atomic.LoadInt64(&capped)),
	}, err
}
