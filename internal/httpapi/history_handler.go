package httpapi

import (
	"net/http"
	"strconv"

	"twin_gateway/internal/middleware"
	"twin_gateway/internal/models"
)

const defaultHistoryLimit = 50

type historyResponse struct {
	Records []*models.ResponseRecord `json:"records"`
}

// handleHistory lists the caller's past questions, newest first.
func (d *Dependencies) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := d.HistoryList.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []*models.ResponseRecord{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Records: records})
}
