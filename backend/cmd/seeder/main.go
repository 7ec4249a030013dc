package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nafes-passport/backend/internal/points"
	"nafes-passport/backend/internal/shared"
)

// StudentSeed describes one roster entry. Totals, ranks, and stamps are
// derived from the station points at seed time, never hand-written.
type StudentSeed struct {
	ID        string
	Name      string
	Grade     int
	Avatar    string
	Points    shared.StationPoints
	ViewCount int
}

func main() {
	log.Println("Starting Nafes Passport Database Seeder...")

	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// --- 1. Seed Rank Catalog ---
	seedRanks(ctx, db)

	// --- 2. Seed Students ---
	studentSeeds := []StudentSeed{
		// Grade 3 (no science station)
		{"student-g3-001", "أحمد محمد", shared.Grade3, "🦁", shared.StationPoints{Arabic: 25, Math: 20, MorningAssembly: 15, NafesExams: 18}, 12},
		{"student-g3-002", "فاطمة علي", shared.Grade3, "🦋", shared.StationPoints{Arabic: 30, Math: 28, MorningAssembly: 20, NafesExams: 19}, 34},
		{"student-g3-003", "عمر خالد", shared.Grade3, "🐯", shared.StationPoints{Arabic: 12, Math: 15, MorningAssembly: 10, NafesExams: 8}, 5},
		{"student-g3-004", "نورة سعد", shared.Grade3, "🌸", shared.StationPoints{Arabic: 22, Math: 25, MorningAssembly: 18, NafesExams: 14}, 21},
		{"student-g3-005", "يوسف إبراهيم", shared.Grade3, "🚀", shared.StationPoints{Arabic: 8, Math: 6, MorningAssembly: 5, NafesExams: 4}, 3},

		// Grade 6
		{"student-g6-001", "سارة عبدالله", shared.Grade6, "🌟", shared.StationPoints{Arabic: 18, Math: 20, Science: 19, MorningAssembly: 17, NafesExams: 20}, 45},
		{"student-g6-002", "محمد حسن", shared.Grade6, "⚽", shared.StationPoints{Arabic: 14, Math: 12, Science: 16, MorningAssembly: 13, NafesExams: 11}, 17},
		{"student-g6-003", "ليان فهد", shared.Grade6, "🎨", shared.StationPoints{Arabic: 20, Math: 18, Science: 20, MorningAssembly: 19, NafesExams: 18}, 52},
		{"student-g6-004", "عبدالرحمن ناصر", shared.Grade6, "🦅", shared.StationPoints{Arabic: 9, Math: 11, Science: 7, MorningAssembly: 12, NafesExams: 9}, 8},
		{"student-g6-005", "ريم طارق", shared.Grade6, "🌺", shared.StationPoints{Arabic: 16, Math: 17, Science: 14, MorningAssembly: 16, NafesExams: 15}, 26},
	}
	seedStudents(ctx, db, studentSeeds)

	log.Println("All data seeding completed successfully.")
}

// ============================================================================
// SEEDING FUNCTIONS
// ============================================================================

func seedRanks(ctx context.Context, db *mongo.Database) {
	log.Println("--- Seeding Rank Catalog ---")
	ranksCol := db.Collection(shared.RanksCollection)

	for _, r := range points.Ranks() {
		filter := bson.M{"id": r.ID}
		update := bson.M{"$set": r}
		opts := options.Update().SetUpsert(true)

		if _, err := ranksCol.UpdateOne(ctx, filter, update, opts); err != nil {
			log.Fatalf("Error seeding rank %d: %v", r.ID, err)
		}
		log.Printf("Seeded Rank %d: %s (%d-%d)", r.ID, r.NameEn, r.MinPoints, r.MaxPoints)
	}
}

func seedStudents(ctx context.Context, db *mongo.Database, seeds []StudentSeed) {
	log.Println("--- Seeding Students ---")
	studentsCol := db.Collection(shared.StudentsCollection)

	now := shared.NowISO()
	for _, s := range seeds {
		total := points.Total(s.Points, s.Grade)

		student := shared.Student{
			ID:          s.ID,
			Name:        s.Name,
			Grade:       s.Grade,
			Avatar:      s.Avatar,
			Points:      s.Points,
			TotalPoints: total,
			Rank:        points.RankFor(total),
			Stamps:      points.StampsFor(total),
			ViewCount:   s.ViewCount,
			Comments:    []shared.Comment{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		filter := bson.M{"_id": student.ID}
		update := bson.M{"$set": student}
		opts := options.Update().SetUpsert(true)

		if _, err := studentsCol.UpdateOne(ctx, filter, update, opts); err != nil {
			log.Fatalf("Error seeding student %s: %v", student.ID, err)
		}
		log.Printf("Seeded Student: %s (grade %d, total %d, rank %s)", student.Name, student.Grade, total, student.Rank.NameEn)
	}
}
