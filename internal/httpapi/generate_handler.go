package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"twin_gateway/internal/i18n"
	"twin_gateway/internal/middleware"
	"twin_gateway/internal/models"
	"twin_gateway/internal/orchestrator"
	"twin_gateway/internal/storage"
)

type generateRequest struct {
	Question        string                  `json:"question"`
	IncludeThinking bool                    `json:"includeThinking"`
	Image           *models.ImageAttachment `json:"image"`
}

type generateResponse struct {
	Answer    string             `json:"answer"`
	ModelUsed string             `json:"modelUsed"`
	Thinking  string             `json:"thinking,omitempty"`
	Usage     *models.UsageStats `json:"usageStats,omitempty"`
	Logs      []string           `json:"logs"`
}

// handleGenerate answers a question in one JSON response.
func (d *Dependencies) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, req, profile, ok := d.prepareGeneration(w, r)
	if !ok {
		return
	}
	lang := i18n.Normalize(profile.Language)

	result, err := d.Generator.Generate(r.Context(), profile, orchestrator.Input{
		Question:        req.Question,
		IncludeThinking: req.IncludeThinking,
		Image:           req.Image,
	})
	if err != nil {
		d.recordHistory(r.Context(), userID, req.Question, "", models.StatusError)
		slog.Error("generation failed", "user_id", userID, "error", err)
		writeJSONErrorDetails(w, http.StatusInternalServerError, i18n.GenerationFailed(lang), err.Error())
		return
	}

	d.recordHistory(r.Context(), userID, req.Question, result.ModelUsed, models.StatusOK)

	writeJSON(w, http.StatusOK, generateResponse{
		Answer:    result.Answer,
		ModelUsed: result.ModelUsed,
		Thinking:  result.Thinking,
		Usage:     result.Usage,
		Logs:      i18n.ProgressLogs(lang),
	})
}

// handleGenerateStream answers a question as a server-sent-event stream.
// Every stream ends with the [DONE] sentinel, success or failure.
func (d *Dependencies) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	userID, req, profile, ok := d.prepareGeneration(w, r)
	if !ok {
		return
	}
	lang := i18n.Normalize(profile.Language)

	events, modelUsed, err := d.Generator.GenerateStream(r.Context(), profile, orchestrator.Input{
		Question:        req.Question,
		IncludeThinking: req.IncludeThinking,
		Image:           req.Image,
	})
	if err != nil {
		d.recordHistory(r.Context(), userID, req.Question, "", models.StatusError)
		slog.Error("stream generation failed", "user_id", userID, "error", err)
		writeJSONErrorDetails(w, http.StatusInternalServerError, i18n.GenerationFailed(lang), err.Error())
		return
	}

	status := d.relayStream(w, r, events)
	d.recordHistory(context.WithoutCancel(r.Context()), userID, req.Question, modelUsed, status)
}

// prepareGeneration does the shared request plumbing: auth context, body
// validation and profile loading.
func (d *Dependencies) prepareGeneration(w http.ResponseWriter, r *http.Request) (int64, *generateRequest, *models.UserProfile, bool) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return 0, nil, nil, false
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return 0, nil, nil, false
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return 0, nil, nil, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, http.StatusBadRequest, "question is required")
		return 0, nil, nil, false
	}
	if req.Image != nil && (req.Image.MimeType == "" || req.Image.Data == "") {
		writeJSONError(w, http.StatusBadRequest, "image requires mimeType and data")
		return 0, nil, nil, false
	}

	profile, err := d.loadProfile(r.Context(), userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return 0, nil, nil, false
	}

	return userID, &req, profile, true
}

// loadProfile returns the stored profile, or a minimal one carrying just
// the account language when the user never filled theirs in.
func (d *Dependencies) loadProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	profile, err := d.Profiles.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, storage.ErrProfileNotFound) {
		return nil, err
	}

	user, err := d.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.UserProfile{UserID: userID, Language: user.Language}, nil
}

// recordHistory enqueues a response record, best-effort.
func (d *Dependencies) recordHistory(ctx context.Context, userID int64, question, modelUsed, status string) {
	record := &models.ResponseRecord{
		UserID:    userID,
		Question:  question,
		ModelUsed: modelUsed,
		Status:    status,
	}
	if err := d.History.Enqueue(ctx, record); err != nil {
		slog.Error("failed to enqueue response record", "user_id", userID, "error", err)
	}
}
