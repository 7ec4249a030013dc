// ============================================================================
// backend/internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

// Supported grade levels. Grade 3 has no science station.
const (
	Grade3 = 3
	Grade6 = 6
)

// Change log action kinds.
const (
	ActionAdd        = "add"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionBulkUpdate = "bulk_update"
	ActionRestore    = "restore"
)

// ============================================================================
// Student Models
// ============================================================================

// StationPoints holds the per-station point values for one student.
// Science is only meaningful for grade 6; it stays zero for grade 3.
type StationPoints struct {
	Arabic          int `bson:"arabic" json:"arabic"`
	Math            int `bson:"math" json:"math"`
	Science         int `bson:"science" json:"science"`
	MorningAssembly int `bson:"morningAssembly" json:"morningAssembly"`
	NafesExams      int `bson:"nafesExams" json:"nafesExams"`
}

// Stamps are the three achievement tiers. They are derived from total
// points on the explicit recompute path, but staff can toggle them
// manually, so they are stored, never computed on read.
type Stamps struct {
	Silver  bool `bson:"silver" json:"silver"`
	Gold    bool `bson:"gold" json:"gold"`
	Diamond bool `bson:"diamond" json:"diamond"`
}

// Rank is a fixed catalog entry looked up from the student's total points.
type Rank struct {
	ID        int    `bson:"id" json:"id"`
	NameAr    string `bson:"nameAr" json:"nameAr"`
	NameEn    string `bson:"nameEn" json:"nameEn"`
	MinPoints int    `bson:"minPoints" json:"minPoints"`
	MaxPoints int    `bson:"maxPoints" json:"maxPoints"`
	Icon      string `bson:"icon" json:"icon"`
}

// Comment is a free-text staff note on a student.
type Comment struct {
	ID        string `bson:"id" json:"id"`
	Text      string `bson:"text" json:"text"`
	Author    string `bson:"author" json:"author"`
	CreatedAt string `bson:"createdAt" json:"createdAt"`
}

// Student is the main document in the students collection.
// TotalPoints and Rank are derived from Points on every write:
// totalPoints == sum of the stations applicable to the grade, and
// rank is the catalog entry whose range contains totalPoints.
type Student struct {
	ID          string        `bson:"_id" json:"id"`
	Name        string        `bson:"name" json:"name"`
	Grade       int           `bson:"grade" json:"grade"`
	Avatar      string        `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Points      StationPoints `bson:"points" json:"points"`
	TotalPoints int           `bson:"totalPoints" json:"totalPoints"`
	Rank        Rank          `bson:"rank" json:"rank"`
	Stamps      Stamps        `bson:"stamps" json:"stamps"`
	ViewCount   int           `bson:"viewCount" json:"viewCount"`
	Comments    []Comment     `bson:"comments" json:"comments"`
	CreatedAt   string        `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt   string        `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// CloneStudent returns a deep, self-contained copy of a student suitable
// for storing as a ledger snapshot. Optional fields are normalized to
// explicit values (an empty comments slice instead of a missing one) so
// the stored document never has undefined-valued fields.
func CloneStudent(s Student) Student {
	c := s
	c.Comments = make([]Comment, len(s.Comments))
	copy(c.Comments, s.Comments)
	return c
}

// ============================================================================
// Change Log Models
// ============================================================================

// FieldDiff records one field-level change inside a ledger entry.
type FieldDiff struct {
	Field    string      `bson:"field" json:"field"`
	OldValue interface{} `bson:"oldValue" json:"oldValue"`
	NewValue interface{} `bson:"newValue" json:"newValue"`
}

// BulkOperation summarizes the parameters of a bulk points update so the
// history view can show one line per operation.
type BulkOperation struct {
	Operation        string   `bson:"operation" json:"operation"`
	Fields           []string `bson:"fields" json:"fields"`
	Points           int      `bson:"points" json:"points"`
	AffectedStudents int      `bson:"affectedStudents" json:"affectedStudents"`
}

// ChangeLog is one immutable audit entry in the change_logs collection.
// SnapshotBefore carries the full pre-mutation student record when there
// is one; it is absent for add entries.
type ChangeLog struct {
	ID             string         `bson:"_id" json:"id"`
	Timestamp      string         `bson:"timestamp" json:"timestamp"`
	Action         string         `bson:"action" json:"action"`
	StudentID      string         `bson:"studentId" json:"studentId"`
	StudentName    string         `bson:"studentName" json:"studentName"`
	Changes        []FieldDiff    `bson:"changes" json:"changes"`
	SnapshotBefore *Student       `bson:"snapshotBefore" json:"snapshotBefore"`
	BulkOperation  *BulkOperation `bson:"bulkOperation,omitempty" json:"bulkOperation,omitempty"`
	RestoredFrom   string         `bson:"restoredFrom,omitempty" json:"restoredFrom,omitempty"`
}
