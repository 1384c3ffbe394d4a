// Package api provides HTTP handlers for Clario endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/clarioapp/clario/internal/auth"
	"github.com/clarioapp/clario/internal/flow"
	"github.com/clarioapp/clario/internal/models"
)

// flowTurnInput binds the authenticated identity to the request body fields.
func flowTurnInput(identity auth.Identity, req chatRequest) flow.TurnInput {
	return flow.TurnInput{
		UserID:         identity.ID,
		DisplayName:    identity.DisplayName,
		Message:        req.Message,
		History:        req.History,
		PendingContext: req.PendingContext,
	}
}

// healthHandler reports liveness. Unauthenticated so load balancers can probe.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// assessmentHandler returns the caller's assessment state, creating the
// initial record on first contact.
func (s *Server) assessmentHandler(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	slog.Debug("Server.assessmentHandler: processing request", "userID", identity.ID, "requestID", requestID(r))

	state, err := s.store.GetAssessment(r.Context(), identity.ID)
	if err != nil {
		slog.Error("Server.assessmentHandler: failed to load state", "error", err, "userID", identity.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load assessment"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// chatRequest is the POST /api/chat body. The user identity comes from the
// authenticated request, never from the body.
type chatRequest struct {
	Message        string               `json:"message"`
	History        []models.ChatMessage `json:"history,omitempty"`
	PendingContext map[string]string    `json:"pendingContext,omitempty"`
}

// chatHandler runs one conversational turn and streams the reply as NDJSON
// event frames, one JSON object per line.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	identity := identityFrom(r)
	slog.Debug("Server.chatHandler: processing chat request", "userID", identity.ID, "requestID", requestID(r))

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err, "userID", identity.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	reply, err := s.processor.ProcessTurn(r.Context(), flowTurnInput(identity, req))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, models.ErrEmptyMessage), errors.Is(err, models.ErrMessageTooLong), errors.Is(err, models.ErrEmptyUserID):
			status = http.StatusBadRequest
		}
		slog.Error("Server.chatHandler: turn failed", "error", err, "userID", identity.ID)
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Server.chatHandler: response writer does not support streaming")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range reply.Events {
		if err := enc.Encode(ev); err != nil {
			slog.Warn("Server.chatHandler: client disconnected mid-stream", "error", err, "userID", identity.ID)
			return
		}
		flusher.Flush()
	}
}

// uploadHandler accepts a document upload, extracts candidate answers for
// the caller's unanswered questions, and returns the merged pending map.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	identity := identityFrom(r)
	slog.Debug("Server.uploadHandler: processing upload", "userID", identity.ID, "requestID", requestID(r))

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		slog.Warn("Server.uploadHandler: failed to parse multipart form", "error", err, "userID", identity.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid or oversized upload"))
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		slog.Warn("Server.uploadHandler: missing document part", "error", err, "userID", identity.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: document"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("Server.uploadHandler: failed to read document", "error", err, "userID", identity.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read document"))
		return
	}

	text, err := s.extractor.ExtractText(data, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnsupportedFormat):
			writeJSONResponse(w, http.StatusUnsupportedMediaType, models.Error("Unsupported document format"))
		case errors.Is(err, models.ErrEmptyDocument):
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Document is empty"))
		default:
			slog.Error("Server.uploadHandler: text extraction failed", "error", err, "userID", identity.ID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to extract document text"))
		}
		return
	}

	pending, err := s.processor.IngestDocument(r.Context(), identity.ID, text)
	if err != nil {
		slog.Error("Server.uploadHandler: ingestion failed", "error", err, "userID", identity.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to analyze document"))
		return
	}

	slog.Info("Server.uploadHandler: document processed",
		"userID", identity.ID, "filename", header.Filename, "pendingTotal", len(pending))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Document analyzed", map[string]interface{}{
		"pendingAnswers": pending,
	}))
}
