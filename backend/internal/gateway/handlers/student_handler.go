package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nafes-passport/backend/internal/gateway/util"
	"nafes-passport/backend/internal/points"
	"nafes-passport/backend/internal/shared"
	"nafes-passport/backend/internal/statistics"
	"nafes-passport/backend/internal/student"
)

// StudentHandler exposes the roster endpoints.
type StudentHandler struct {
	Students *student.Service
}

// -- Request Structs --

type RESTCreateStudentRequest struct {
	Name  string `json:"name"`
	Grade int    `json:"grade"`
}

type RESTUpdatePointsRequest struct {
	Points shared.StationPoints `json:"points"`
}

type RESTAdjustPointsRequest struct {
	Subject   string `json:"subject"`
	Operation string `json:"operation"` // add or subtract
	Points    int    `json:"points"`
}

type RESTSetStampRequest struct {
	Stamp   string `json:"stamp"` // silver, gold, diamond
	Granted bool   `json:"granted"`
}

type RESTAddCommentRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

type RESTBulkPointsRequest struct {
	StudentIDs []string `json:"studentIds"`
	Subjects   []string `json:"subjects"`
	Operation  string   `json:"operation"`
	Points     int      `json:"points"`
}

// -- Handlers --

// ListStudents handles GET /api/students?grade=3|6
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	grade := 0
	if gradeStr := r.URL.Query().Get("grade"); gradeStr != "" {
		parsed, err := strconv.Atoi(gradeStr)
		if err != nil || (parsed != shared.Grade3 && parsed != shared.Grade6) {
			util.WriteJSONError(w, http.StatusBadRequest, "grade must be 3 or 6")
			return
		}
		grade = parsed
	}

	students, err := h.Students.List(r.Context(), grade)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"students": students,
	})
}

// GetStudent handles GET /api/students/{id}
func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.Students.Get(r.Context(), id)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

// CreateStudent handles POST /api/students
func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTCreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.Students.Create(r.Context(), reqBody.Name, reqBody.Grade)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

// UpdatePoints handles PUT /api/students/{id}/points. This is the manual
// edit path: out-of-range values are rejected, not clamped.
func (h *StudentHandler) UpdatePoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var reqBody RESTUpdatePointsRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.Students.UpdatePoints(r.Context(), id, reqBody.Points)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

// AdjustPoints handles POST /api/students/{id}/points/adjust. This is the
// clamp path: oversized requests cap at the subject's ceiling and the
// response reports whether capping happened.
func (h *StudentHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var reqBody RESTAdjustPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subject, ok := points.ParseSubject(reqBody.Subject)
	if !ok {
		util.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown subject %q", reqBody.Subject))
		return
	}
	direction, ok := points.ParseDirection(reqBody.Operation)
	if !ok {
		util.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", reqBody.Operation))
		return
	}

	st, report, err := h.Students.AdjustPoints(r.Context(), id, subject, direction, reqBody.Points)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"student": st,
		"report":  report,
	})
}

// SetStamp handles PATCH /api/students/{id}/stamps
func (h *StudentHandler) SetStamp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var reqBody RESTSetStampRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.Students.SetStamp(r.Context(), id, reqBody.Stamp, reqBody.Granted)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

// RecomputeStamps handles POST /api/students/{id}/stamps/recompute
func (h *StudentHandler) RecomputeStamps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.Students.RecomputeStamps(r.Context(), id)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

// AddComment handles POST /api/students/{id}/comments
func (h *StudentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var reqBody RESTAddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.Students.AddComment(r.Context(), id, reqBody.Author, reqBody.Text)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

// RemoveComment handles DELETE /api/students/{id}/comments/{commentId}
func (h *StudentHandler) RemoveComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentId")

	st, err := h.Students.RemoveComment(r.Context(), id, commentID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

// IncrementViews handles POST /api/students/{id}/views. Best-effort; the
// response is success regardless so a flaky counter never breaks the page.
func (h *StudentHandler) IncrementViews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Students.IncrementViews(r.Context(), id)
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DeleteStudent handles DELETE /api/students/{id}
func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Students.Delete(r.Context(), id); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Student deleted",
	})
}

// BulkUpdatePoints handles POST /api/students/bulk-points
func (h *StudentHandler) BulkUpdatePoints(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTBulkPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subjects := make([]points.Subject, 0, len(reqBody.Subjects))
	for _, name := range reqBody.Subjects {
		subject, ok := points.ParseSubject(name)
		if !ok {
			util.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown subject %q", name))
			return
		}
		subjects = append(subjects, subject)
	}
	direction, ok := points.ParseDirection(reqBody.Operation)
	if !ok {
		util.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", reqBody.Operation))
		return
	}

	result, err := h.Students.ApplyBulkUpdate(r.Context(), reqBody.StudentIDs, subjects, direction, reqBody.Points)
	if err != nil {
		// Partial results may exist; the aggregate failure message is all
		// the caller gets (no per-student breakdown).
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// GetLeaderboardStats handles GET /api/leaderboard/stats
func (h *StudentHandler) GetLeaderboardStats(w http.ResponseWriter, r *http.Request) {
	students, err := h.Students.List(r.Context(), 0)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   statistics.Summarize(students),
	})
}
