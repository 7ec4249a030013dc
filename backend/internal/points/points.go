// ============================================================================
// backend/internal/points/points.go
// Points-limit arithmetic, total/rank derivation, and stamp thresholds.
// Everything in this package is pure: no I/O, no failure modes.
// ============================================================================

package points

import (
	"fmt"

	"nafes-passport/backend/internal/shared"
)

// Subject identifies one point station.
type Subject string

const (
	Arabic          Subject = "arabic"
	Math            Subject = "math"
	Science         Subject = "science"
	MorningAssembly Subject = "morningAssembly"
	NafesExams      Subject = "nafesExams"
)

// Direction of a point adjustment.
type Direction string

const (
	Increase Direction = "add"
	Decrease Direction = "subtract"
)

// Per-station ceilings. Each grade totals 100 points; grade 3 spreads the
// science share over arabic and math instead.
var grade6Ceilings = map[Subject]int{
	Arabic:          20,
	Math:            20,
	Science:         20,
	MorningAssembly: 20,
	NafesExams:      20,
}

var grade3Ceilings = map[Subject]int{
	Arabic:          30,
	Math:            30,
	MorningAssembly: 20,
	NafesExams:      20,
}

// Stamp thresholds over total points.
const (
	SilverThreshold  = 50
	GoldThreshold    = 70
	DiamondThreshold = 90
)

// ranks is the fixed catalog, ascending and contiguous over 0..100.
var ranks = []shared.Rank{
	{ID: 1, NameAr: "مستكشف صغير", NameEn: "Junior Explorer", MinPoints: 0, MaxPoints: 10, Icon: "🌍"},
	{ID: 2, NameAr: "باحث مبتدئ", NameEn: "Beginner Researcher", MinPoints: 11, MaxPoints: 25, Icon: "🔭"},
	{ID: 3, NameAr: "مفكر", NameEn: "Thinker", MinPoints: 26, MaxPoints: 40, Icon: "💭"},
	{ID: 4, NameAr: "محلل", NameEn: "Analyst", MinPoints: 41, MaxPoints: 55, Icon: "📊"},
	{ID: 5, NameAr: "مبتكر", NameEn: "Innovator", MinPoints: 56, MaxPoints: 70, Icon: "💡"},
	{ID: 6, NameAr: "قائد", NameEn: "Leader", MinPoints: 71, MaxPoints: 85, Icon: "🚀"},
	{ID: 7, NameAr: "عالم فضاء", NameEn: "Space Scientist", MinPoints: 86, MaxPoints: 95, Icon: "🛸"},
	{ID: 8, NameAr: "خبير نافس", NameEn: "Nafes Expert", MinPoints: 96, MaxPoints: 100, Icon: "⭐"},
}

// Subjects returns the ordered station set applicable to a grade.
// Grade 3 has no science station.
func Subjects(grade int) []Subject {
	if grade == shared.Grade6 {
		return []Subject{Arabic, Math, Science, MorningAssembly, NafesExams}
	}
	return []Subject{Arabic, Math, MorningAssembly, NafesExams}
}

// Ceiling returns the grade-specific maximum for a subject, or 0 for a
// subject that does not apply to the grade.
func Ceiling(subject Subject, grade int) int {
	if grade == shared.Grade6 {
		return grade6Ceilings[subject]
	}
	return grade3Ceilings[subject]
}

// Value reads one subject's points from a point map.
func Value(p shared.StationPoints, subject Subject) int {
	switch subject {
	case Arabic:
		return p.Arabic
	case Math:
		return p.Math
	case Science:
		return p.Science
	case MorningAssembly:
		return p.MorningAssembly
	case NafesExams:
		return p.NafesExams
	}
	return 0
}

// Set writes one subject's points into a point map.
func Set(p *shared.StationPoints, subject Subject, value int) {
	switch subject {
	case Arabic:
		p.Arabic = value
	case Math:
		p.Math = value
	case Science:
		p.Science = value
	case MorningAssembly:
		p.MorningAssembly = value
	case NafesExams:
		p.NafesExams = value
	}
}

// Report describes the outcome of one clamped adjustment. It is computed
// in the same pass as the clamp itself so the reported values can never
// drift from the applied ones.
type Report struct {
	NewValue    int  `json:"newValue"`
	WasClamped  bool `json:"wasClamped"`
	Ceiling     int  `json:"ceiling"`
	ActualDelta int  `json:"actualDelta"`
}

// ClampWithReport applies a signed adjustment to a subject's points,
// keeping the result in [0, ceiling]. Oversized requests are silently
// capped so bulk operations never fail partway because one student was
// already near a limit.
//
// WasClamped is true whenever the raw arithmetic result fell outside the
// legal range, including a decrease hitting the floor of 0. If current
// already exceeds the ceiling (a data anomaly), an increase still caps at
// the ceiling; a decrease only guarantees the floor.
func ClampWithReport(current int, subject Subject, direction Direction, magnitude int, grade int) Report {
	ceiling := Ceiling(subject, grade)

	var raw, clamped int
	if direction == Increase {
		raw = current + magnitude
		clamped = raw
		if clamped > ceiling {
			clamped = ceiling
		}
	} else {
		raw = current - magnitude
		clamped = raw
		if clamped < 0 {
			clamped = 0
		}
	}

	return Report{
		NewValue:    clamped,
		WasClamped:  raw != clamped,
		Ceiling:     ceiling,
		ActualDelta: clamped - current,
	}
}

// Clamp is ClampWithReport without the report.
func Clamp(current int, subject Subject, direction Direction, magnitude int, grade int) int {
	return ClampWithReport(current, subject, direction, magnitude, grade).NewValue
}

// Total sums exactly the subjects applicable to the grade. A stray value
// in a non-applicable subject (grade 3 science) is ignored, never an error.
func Total(p shared.StationPoints, grade int) int {
	total := 0
	for _, subject := range Subjects(grade) {
		total += Value(p, subject)
	}
	return total
}

// RankFor returns the catalog entry whose inclusive range contains total.
// Ranking is total: anything outside the catalog falls back to the lowest
// entry rather than failing.
func RankFor(total int) shared.Rank {
	for _, r := range ranks {
		if total >= r.MinPoints && total <= r.MaxPoints {
			return r
		}
	}
	return ranks[0]
}

// Ranks returns the full catalog in ascending order.
func Ranks() []shared.Rank {
	out := make([]shared.Rank, len(ranks))
	copy(out, ranks)
	return out
}

// StampsFor derives the three stamp tiers from a total. Only the explicit
// recompute operation uses this; point edits never touch stored stamps, so
// manual grants and revocations survive point-driven derivation.
func StampsFor(total int) shared.Stamps {
	return shared.Stamps{
		Silver:  total >= SilverThreshold,
		Gold:    total >= GoldThreshold,
		Diamond: total >= DiamondThreshold,
	}
}

// Validate checks a manually edited point map against the grade's ceilings
// and returns one message per offending field. Unlike the clamp path, a
// manual edit outside the legal range is rejected, not adjusted.
func Validate(p shared.StationPoints, grade int) []string {
	var errs []string
	for _, subject := range Subjects(grade) {
		v := Value(p, subject)
		max := Ceiling(subject, grade)
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s: %d cannot be negative", subject, v))
		}
		if v > max {
			errs = append(errs, fmt.Sprintf("%s: %d exceeds the maximum of %d", subject, v, max))
		}
	}
	if grade == shared.Grade3 && p.Science != 0 {
		errs = append(errs, fmt.Sprintf("science: %d is not applicable to grade 3", p.Science))
	}
	return errs
}

// ParseSubject validates a subject name from an API request.
func ParseSubject(s string) (Subject, bool) {
	switch Subject(s) {
	case Arabic, Math, Science, MorningAssembly, NafesExams:
		return Subject(s), true
	}
	return "", false
}

// ParseDirection validates an operation name from an API request.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case Increase, Decrease:
		return Direction(s), true
	}
	return "", false
}
