// ============================================================================
// backend/internal/watch/watch.go
// Change-stream subscription to the roster. Consumers receive full roster
// snapshots, ordered by total points; the vendor's event shapes stay
// inside this package.
// ============================================================================

package watch

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nafes-passport/backend/internal/shared"
)

// Roster subscribes to changes on the students collection. It sends one
// initial snapshot immediately, then a fresh snapshot after every change.
// The returned cancel func ends the subscription and closes the channel;
// cancelling the parent context has the same effect.
//
// A slow consumer never blocks the stream: if a snapshot is still pending
// on the channel it is replaced by the newer one.
func Roster(ctx context.Context, db *mongo.Database) (<-chan []shared.Student, func(), error) {
	col := db.Collection(shared.StudentsCollection)

	streamCtx, cancel := context.WithCancel(ctx)

	streamOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := col.Watch(streamCtx, mongo.Pipeline{}, streamOpts)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to open roster change stream: %w", err)
	}

	ch := make(chan []shared.Student, 1)

	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		send := func() {
			snapshot, err := loadRoster(streamCtx, col)
			if err != nil {
				if streamCtx.Err() == nil {
					log.Printf("Warning: roster snapshot failed: %v", err)
				}
				return
			}
			// Drop a stale pending snapshot rather than block.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			case <-streamCtx.Done():
			}
		}

		send()
		for stream.Next(streamCtx) {
			send()
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			log.Printf("Warning: roster change stream ended: %v", err)
		}
	}()

	return ch, cancel, nil
}

func loadRoster(ctx context.Context, col *mongo.Collection) ([]shared.Student, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	findOptions := options.Find().
		SetSort(bson.D{{Key: "totalPoints", Value: -1}, {Key: "name", Value: 1}})

	cursor, err := col.Find(queryCtx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(queryCtx)

	students := []shared.Student{}
	for cursor.Next(queryCtx) {
		var st shared.Student
		if err := cursor.Decode(&st); err != nil {
			continue
		}
		students = append(students, st)
	}
	return students, cursor.Err()
}
