package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doJSON(t *testing.T, env *TestEnv, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	env.Router.ServeHTTP(rr, req)

	var resp map[string]interface{}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	return rr, resp
}

func unlock(t *testing.T, env *TestEnv) string {
	t.Helper()
	rr, resp := doJSON(t, env, "POST", "/api/auth/unlock", "", map[string]string{"code": testEditCode})
	if rr.Code != http.StatusOK {
		t.Fatalf("Unlock failed: %d %s", rr.Code, rr.Body.String())
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("Unlock response missing token")
	}
	return token
}

func TestGateway_Auth(t *testing.T) {
	env := setupGatewayTestEnv(t)

	t.Run("Wrong Code Rejected", func(t *testing.T) {
		rr, _ := doJSON(t, env, "POST", "/api/auth/unlock", "", map[string]string{"code": "wrong"})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d. Body: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("Correct Code Yields Token", func(t *testing.T) {
		unlock(t, env)
	})

	t.Run("Protected Route Without Token", func(t *testing.T) {
		rr, _ := doJSON(t, env, "POST", "/api/students", "", map[string]interface{}{"name": "x", "grade": 6})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d. Body: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("Protected Route With Garbage Token", func(t *testing.T) {
		rr, _ := doJSON(t, env, "POST", "/api/students", "not-a-token", map[string]interface{}{"name": "x", "grade": 6})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d. Body: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestGateway_StudentLifecycle(t *testing.T) {
	env := setupGatewayTestEnv(t)
	token := unlock(t, env)

	var studentID string

	// --- Test 1: Create Student (POST /api/students) ---
	t.Run("Create Student", func(t *testing.T) {
		rr, resp := doJSON(t, env, "POST", "/api/students", token, map[string]interface{}{
			"name":  "سارة عبدالله",
			"grade": 6,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		st, _ := resp["student"].(map[string]interface{})
		studentID, _ = st["id"].(string)
		if studentID == "" {
			t.Fatal("Response missing student id")
		}
		if st["totalPoints"].(float64) != 0 {
			t.Errorf("New student should start at 0 total points, got %v", st["totalPoints"])
		}
		rank, _ := st["rank"].(map[string]interface{})
		if rank["id"].(float64) != 1 {
			t.Errorf("New student should hold the lowest rank, got %v", rank["id"])
		}
	})

	// --- Test 2: Adjust Points With Clamping ---
	t.Run("Adjust Points Clamps At Ceiling", func(t *testing.T) {
		// Raise arabic to 19 first, then add 3 more; ceiling for grade 6 is 20.
		doJSON(t, env, "POST", "/api/students/"+studentID+"/points/adjust", token, map[string]interface{}{
			"subject": "arabic", "operation": "add", "points": 19,
		})
		rr, resp := doJSON(t, env, "POST", "/api/students/"+studentID+"/points/adjust", token, map[string]interface{}{
			"subject": "arabic", "operation": "add", "points": 3,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		report, _ := resp["report"].(map[string]interface{})
		if report["newValue"].(float64) != 20 {
			t.Errorf("Expected arabic capped at 20, got %v", report["newValue"])
		}
		if report["wasClamped"].(bool) != true {
			t.Error("Expected wasClamped=true for an oversized increase")
		}
		if report["actualDelta"].(float64) != 1 {
			t.Errorf("Expected actualDelta 1, got %v", report["actualDelta"])
		}
	})

	// --- Test 3: Manual Edit Rejects Out-Of-Range Values ---
	t.Run("Manual Edit Rejected", func(t *testing.T) {
		rr, resp := doJSON(t, env, "PUT", "/api/students/"+studentID+"/points", token, map[string]interface{}{
			"points": map[string]int{"arabic": 25, "math": 10, "science": 10, "morningAssembly": 10, "nafesExams": 10},
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		fields, _ := resp["fields"].([]interface{})
		if len(fields) == 0 {
			t.Error("Validation response missing per-field messages")
		}
	})

	// --- Test 4: Stamps ---
	t.Run("Recompute And Override Stamps", func(t *testing.T) {
		// Bring total to 60 (arabic is already 20).
		doJSON(t, env, "PUT", "/api/students/"+studentID+"/points", token, map[string]interface{}{
			"points": map[string]int{"arabic": 20, "math": 20, "science": 20, "morningAssembly": 0, "nafesExams": 0},
		})
		rr, resp := doJSON(t, env, "POST", "/api/students/"+studentID+"/stamps/recompute", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		st, _ := resp["student"].(map[string]interface{})
		stamps, _ := st["stamps"].(map[string]interface{})
		if stamps["silver"].(bool) != true || stamps["gold"].(bool) != false {
			t.Errorf("Expected silver only at 60 points, got %v", stamps)
		}

		// Manual override: grant gold below its threshold.
		rr, resp = doJSON(t, env, "PATCH", "/api/students/"+studentID+"/stamps", token, map[string]interface{}{
			"stamp": "gold", "granted": true,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		st, _ = resp["student"].(map[string]interface{})
		stamps, _ = st["stamps"].(map[string]interface{})
		if stamps["gold"].(bool) != true {
			t.Error("Manual gold grant did not stick")
		}
	})

	// --- Test 5: Comments ---
	t.Run("Add And Remove Comment", func(t *testing.T) {
		rr, resp := doJSON(t, env, "POST", "/api/students/"+studentID+"/comments", token, map[string]interface{}{
			"author": "المعلمة", "text": "تقدم ممتاز هذا الأسبوع",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		st, _ := resp["student"].(map[string]interface{})
		comments, _ := st["comments"].([]interface{})
		if len(comments) != 1 {
			t.Fatalf("Expected 1 comment, got %d", len(comments))
		}
		commentID := comments[0].(map[string]interface{})["id"].(string)

		rr, resp = doJSON(t, env, "DELETE", "/api/students/"+studentID+"/comments/"+commentID, token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		st, _ = resp["student"].(map[string]interface{})
		comments, _ = st["comments"].([]interface{})
		if len(comments) != 0 {
			t.Errorf("Expected 0 comments after removal, got %d", len(comments))
		}
	})

	// --- Test 6: View Counter (public) ---
	t.Run("Increment Views", func(t *testing.T) {
		rr, _ := doJSON(t, env, "POST", "/api/students/"+studentID+"/views", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		_, resp := doJSON(t, env, "GET", "/api/students/"+studentID, "", nil)
		st, _ := resp["student"].(map[string]interface{})
		if st["viewCount"].(float64) != 1 {
			t.Errorf("Expected viewCount 1, got %v", st["viewCount"])
		}
	})

	// --- Test 7: Leaderboard Stats ---
	t.Run("Leaderboard Stats", func(t *testing.T) {
		rr, resp := doJSON(t, env, "GET", "/api/leaderboard/stats", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		stats, ok := resp["stats"].(map[string]interface{})
		if !ok {
			t.Fatal("Response missing stats object")
		}
		if stats["count"].(float64) != 1 {
			t.Errorf("Expected count 1, got %v", stats["count"])
		}
	})

	// --- Test 8: Delete Then Restore From The Ledger ---
	t.Run("Delete Then Restore", func(t *testing.T) {
		rr, _ := doJSON(t, env, "DELETE", "/api/students/"+studentID, token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Delete failed: %d %s", rr.Code, rr.Body.String())
		}
		rr, _ = doJSON(t, env, "GET", "/api/students/"+studentID, "", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("Expected 404 after delete, got %d", rr.Code)
		}

		// The delete entry carries the full pre-delete snapshot.
		_, resp := doJSON(t, env, "GET", "/api/changelog", token, nil)
		entries, _ := resp["entries"].([]interface{})
		var entryID string
		for _, raw := range entries {
			entry := raw.(map[string]interface{})
			if entry["action"].(string) == "delete" && entry["studentId"].(string) == studentID {
				entryID = entry["id"].(string)
				break
			}
		}
		if entryID == "" {
			t.Fatal("No delete entry found in the change log")
		}

		rr, resp = doJSON(t, env, "POST", "/api/changelog/"+entryID+"/restore", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Restore failed: %d %s", rr.Code, rr.Body.String())
		}
		restored, _ := resp["student"].(map[string]interface{})
		if restored["id"].(string) != studentID {
			t.Errorf("Restore returned wrong student: %v", restored["id"])
		}

		rr, resp = doJSON(t, env, "GET", "/api/students/"+studentID, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected restored student to exist, got %d", rr.Code)
		}
		st, _ := resp["student"].(map[string]interface{})
		if st["name"].(string) != "سارة عبدالله" {
			t.Errorf("Restored student lost its name: %v", st["name"])
		}
	})
}

func TestGateway_BulkUpdate(t *testing.T) {
	env := setupGatewayTestEnv(t)
	token := unlock(t, env)

	var ids []string
	for _, name := range []string{"أحمد محمد", "فاطمة علي", "عمر خالد"} {
		_, resp := doJSON(t, env, "POST", "/api/students", token, map[string]interface{}{
			"name": name, "grade": 3,
		})
		st, _ := resp["student"].(map[string]interface{})
		ids = append(ids, st["id"].(string))
	}

	// Push one student near the arabic ceiling so the bulk add caps it.
	doJSON(t, env, "POST", "/api/students/"+ids[0]+"/points/adjust", token, map[string]interface{}{
		"subject": "arabic", "operation": "add", "points": 28,
	})

	rr, resp := doJSON(t, env, "POST", "/api/students/bulk-points", token, map[string]interface{}{
		"studentIds": ids,
		"subjects":   []string{"arabic", "math"},
		"operation":  "add",
		"points":     5,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Bulk update failed: %d %s", rr.Code, rr.Body.String())
	}
	result, _ := resp["result"].(map[string]interface{})
	if result["updatedStudents"].(float64) != 3 {
		t.Errorf("Expected 3 updated students, got %v", result["updatedStudents"])
	}
	if result["requestedPairs"].(float64) != 6 {
		t.Errorf("Expected 6 requested pairs, got %v", result["requestedPairs"])
	}
	if result["cappedPairs"].(float64) != 1 {
		t.Errorf("Expected 1 capped pair (arabic at 28+5), got %v", result["cappedPairs"])
	}

	// The capped student sits at the ceiling, not above it.
	_, resp = doJSON(t, env, "GET", "/api/students/"+ids[0], "", nil)
	st, _ := resp["student"].(map[string]interface{})
	points, _ := st["points"].(map[string]interface{})
	if points["arabic"].(float64) != 30 {
		t.Errorf("Expected arabic at the grade-3 ceiling of 30, got %v", points["arabic"])
	}

	// The ledger has one bulk entry per student, each carrying the shared summary.
	_, resp = doJSON(t, env, "GET", "/api/changelog", token, nil)
	entries, _ := resp["entries"].([]interface{})
	bulkEntries := 0
	for _, raw := range entries {
		entry := raw.(map[string]interface{})
		if entry["action"].(string) != "bulk_update" {
			continue
		}
		bulkEntries++
		bulk, _ := entry["bulkOperation"].(map[string]interface{})
		if bulk == nil || bulk["affectedStudents"].(float64) != 3 {
			t.Errorf("Bulk entry missing shared summary: %v", entry["bulkOperation"])
		}
	}
	if bulkEntries != 3 {
		t.Errorf("Expected 3 bulk_update ledger entries, got %d", bulkEntries)
	}
}

func TestGateway_ListOrdering(t *testing.T) {
	env := setupGatewayTestEnv(t)
	token := unlock(t, env)

	names := []string{"ريم طارق", "محمد حسن"}
	var ids []string
	for _, name := range names {
		_, resp := doJSON(t, env, "POST", "/api/students", token, map[string]interface{}{
			"name": name, "grade": 6,
		})
		st, _ := resp["student"].(map[string]interface{})
		ids = append(ids, st["id"].(string))
	}

	// Give the second student more points; the list orders by total desc.
	doJSON(t, env, "POST", "/api/students/"+ids[1]+"/points/adjust", token, map[string]interface{}{
		"subject": "math", "operation": "add", "points": 15,
	})

	_, resp := doJSON(t, env, "GET", "/api/students?grade=6", "", nil)
	students, _ := resp["students"].([]interface{})
	if len(students) != 2 {
		t.Fatalf("Expected 2 students, got %d", len(students))
	}
	first := students[0].(map[string]interface{})
	if first["id"].(string) != ids[1] {
		t.Errorf("Expected the higher-scoring student first, got %v", first["name"])
	}

	rr, _ := doJSON(t, env, "GET", "/api/students?grade=5", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unsupported grade, got %d", rr.Code)
	}
}
