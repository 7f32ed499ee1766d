package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"twin_gateway/internal/i18n"
	"twin_gateway/internal/middleware"
	"twin_gateway/internal/models"
	"twin_gateway/internal/storage"
)

type profileRequest struct {
	Language     string       `json:"language"`
	Demographics models.JSONB `json:"demographics"`
	Preferences  models.JSONB `json:"preferences"`
}

// handleProfile serves GET and PUT for the caller's digital-twin profile.
func (d *Dependencies) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	switch r.Method {
	case http.MethodGet:
		d.getProfile(w, r, userID)
	case http.MethodPut:
		d.putProfile(w, r, userID)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (d *Dependencies) getProfile(w http.ResponseWriter, r *http.Request, userID int64) {
	profile, err := d.Profiles.GetByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			writeJSONError(w, http.StatusNotFound, "no profile stored yet")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (d *Dependencies) putProfile(w http.ResponseWriter, r *http.Request, userID int64) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profile := &models.UserProfile{
		UserID:       userID,
		Language:     i18n.Normalize(req.Language),
		Demographics: req.Demographics,
		Preferences:  req.Preferences,
	}
	if err := d.Profiles.Upsert(r.Context(), profile); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
