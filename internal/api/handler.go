// Package api exposes sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/HitoniYori/ijime-support-ai/internal/agent"
	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
	"github.com/HitoniYori/ijime-support-ai/internal/history"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

const (
	maxUploadMemory = 32 << 20
	maxImportBytes  = 16 << 20
)

// Handler serves the session API.
type Handler struct {
	sessions *session.Manager
	archive  *history.Archive // nil disables snapshot listing
}

// NewHandler creates a Handler. archive may be nil.
func NewHandler(sessions *session.Manager, archive *history.Archive) *Handler {
	return &Handler{sessions: sessions, archive: archive}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshots", h.ListSnapshots)
		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", h.CloseSession)
			r.Get("/history", h.GetHistory)
			r.Get("/uploads", h.ListUploads)
			r.Post("/uploads", h.AddUploads)
			r.Delete("/uploads", h.ClearUploads)
			r.Post("/turns", h.SubmitTurn)
			r.Post("/reset", h.Reset)
			r.Get("/export", h.Export)
			r.Post("/import", h.Import)
			r.Post("/snapshots", h.SaveSnapshot)
			r.Post("/snapshots/{snapshotID}/restore", h.RestoreSnapshot)
		})
	})
}

type sessionResponse struct {
	ID          string         `json:"id"`
	UploaderKey int            `json:"uploader_key"`
	History     []history.Turn `json:"history"`
}

type uploadInfo struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

type uploadsResponse struct {
	Uploads     []uploadInfo `json:"uploads"`
	UploaderKey int          `json:"uploader_key"`
}

type turnRequest struct {
	Text string `json:"text"`
}

type failureResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type turnResponse struct {
	Reply    string           `json:"reply,omitempty"`
	Warnings []string         `json:"warnings"`
	Failure  *failureResponse `json:"failure,omitempty"`
	History  []history.Turn   `json:"history"`
}

type snapshotRequest struct {
	Label string `json:"label"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return s, true
}

// CreateSession starts a conversation.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	JSON(w, http.StatusCreated, sessionResponse{ID: s.ID, UploaderKey: s.UploaderKey(), History: s.History()})
}

// CloseSession ends a conversation.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "id")); err != nil {
		Error(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns the displayed turns.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, sessionResponse{ID: s.ID, UploaderKey: s.UploaderKey(), History: s.History()})
}

func uploadsOf(s *session.Session) uploadsResponse {
	files := s.Uploads()
	out := uploadsResponse{Uploads: make([]uploadInfo, 0, len(files)), UploaderKey: s.UploaderKey()}
	for _, f := range files {
		out.Uploads = append(out.Uploads, uploadInfo{Name: f.Name, MIMEType: f.MIMEType, Size: len(f.Data)})
	}
	return out
}

// ListUploads returns the staged files.
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, uploadsOf(s))
}

// AddUploads stages the multipart "files" fields.
func (h *Handler) AddUploads(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		Error(w, http.StatusBadRequest, `no "files" field in form`)
		return
	}
	files := make([]evidence.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = evidence.DetectType(fh.Filename, data)
		}
		files = append(files, evidence.File{Name: fh.Filename, MIMEType: mimeType, Data: data})
	}
	s.Stage(files...)
	logger.L.Info("files staged", "session", s.ID, "count", len(files))
	JSON(w, http.StatusOK, uploadsOf(s))
}

// ClearUploads drops the staged files.
func (h *Handler) ClearUploads(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearUploads()
	JSON(w, http.StatusOK, uploadsOf(s))
}

// SubmitTurn runs one turn. A backend failure is still a 200: the user turn
// was recorded and the failure is described in the body.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A dropped client must not abort the backend call; the turn still has
	// to settle into history.
	out, err := s.Submit(context.WithoutCancel(r.Context()), req.Text)
	resp := turnResponse{Reply: out.Reply, Warnings: out.Warnings}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	switch {
	case errors.Is(err, agent.ErrTurnInFlight):
		Error(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, agent.ErrNothingToSend):
		resp.History = s.History()
		JSON(w, http.StatusUnprocessableEntity, resp)
		return
	case errors.Is(err, session.ErrClosed):
		Error(w, http.StatusGone, err.Error())
		return
	case err != nil:
		logger.L.Error("turn failed", "session", s.ID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if f := out.Failure; f != nil {
		resp.Failure = &failureResponse{Kind: string(f.Kind), Message: f.Message, Detail: f.Detail}
	}
	resp.History = s.History()
	JSON(w, http.StatusOK, resp)
}

// Reset clears the conversation back to the greeting.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset()
	JSON(w, http.StatusOK, sessionResponse{ID: s.ID, UploaderKey: s.UploaderKey(), History: s.History()})
}

// Export downloads the conversation as chat_history.json.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := s.Export()
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="chat_history.json"`)
	_, _ = w.Write(data)
}

// Import replaces the conversation with the JSON request body.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err := s.Import(data); err != nil {
		var pe *history.PersistenceError
		if errors.As(err, &pe) {
			Error(w, http.StatusBadRequest, pe.Error())
			return
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, sessionResponse{ID: s.ID, UploaderKey: s.UploaderKey(), History: s.History()})
}

// SaveSnapshot archives the conversation.
func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req snapshotRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	snap, err := s.SaveSnapshot(r.Context(), req.Label)
	if errors.Is(err, session.ErrNoArchive) {
		Error(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusCreated, snap)
}

// ListSnapshots lists every archived conversation.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Error(w, http.StatusNotImplemented, session.ErrNoArchive.Error())
		return
	}
	snaps, err := h.archive.List(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []history.Snapshot{}
	}
	JSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// RestoreSnapshot loads an archived conversation into the session.
func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "snapshotID"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid snapshot id")
		return
	}
	err = s.RestoreSnapshot(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNoArchive):
		Error(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, history.ErrSnapshotNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case err != nil:
		Error(w, http.StatusInternalServerError, err.Error())
	default:
		JSON(w, http.StatusOK, sessionResponse{ID: s.ID, UploaderKey: s.UploaderKey(), History: s.History()})
	}
}
