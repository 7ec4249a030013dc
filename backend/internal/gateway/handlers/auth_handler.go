package handlers

import (
	"encoding/json"
	"net/http"

	"nafes-passport/backend/internal/auth"
	"nafes-passport/backend/internal/gateway/util"
)

// AuthHandler exposes the edit-code unlock endpoint.
type AuthHandler struct {
	Auth *auth.Service
}

type unlockRequest struct {
	Code string `json:"code"`
}

// Unlock handles POST /api/auth/unlock. A correct edit code yields a
// short-lived edit token for the admin endpoints.
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var reqBody unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.Auth.VerifyEditCode(reqBody.Code) {
		util.WriteJSONError(w, http.StatusUnauthorized, "Invalid edit code")
		return
	}

	token, expiresAt, err := h.Auth.IssueEditToken()
	if err != nil {
		util.WriteJSONError(w, http.StatusInternalServerError, "Failed to issue edit token")
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"token":     token,
		"expiresAt": expiresAt,
	})
}
