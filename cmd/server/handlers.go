package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Glossick/akasha-sub002"
	"github.com/Glossick/akasha-sub002/loader"
)

type handler struct {
	engine  *akasha.Engine
	loaders *loader.Registry
}

func newHandler(e *akasha.Engine) *handler {
	return &handler{engine: e, loaders: loader.NewRegistry()}
}

type learnRequest struct {
	Text string `json:"text"`
	akasha.LearnOptions
}

// POST /learn
func (h *handler) handleLearn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.engine.Learn(ctx, req.Text, req.LearnOptions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "learn failed")
		slog.Error("learn error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /learn/file
// Accepts a multipart upload, extracts text with the loader registry, and
// learns it as one document.
func (h *handler) handleLearnFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(100 << 20); err != nil { // 100MB max
		writeError(w, http.StatusBadRequest, "expected multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)

	tmpPath := filepath.Join(os.TempDir(), safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	dst.Close()
	defer os.Remove(tmpPath)

	loaded, err := h.loaders.Load(ctx, tmpPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not extract text from file")
		slog.Error("load error", "file", safeName, "error", err)
		return
	}

	opts := akasha.LearnOptions{
		ContextID:   r.FormValue("contextId"),
		ContextName: r.FormValue("contextName"),
		ValidFrom:   r.FormValue("validFrom"),
		ValidTo:     r.FormValue("validTo"),
	}
	if opts.ContextName == "" {
		opts.ContextName = safeName
	}

	result, err := h.engine.Learn(ctx, loaded.Text, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "learn failed")
		slog.Error("learn error", "file", safeName, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /learn/batch
func (h *handler) handleLearnBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Minute)
	defer cancel()

	var req struct {
		Items []akasha.BatchItem `json:"items"`
		akasha.LearnOptions
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required")
		return
	}

	result, err := h.engine.LearnBatch(ctx, req.Items, req.LearnOptions, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "batch failed")
		slog.Error("batch error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /ask
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Query string `json:"query"`
		akasha.AskOptions
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.engine.Ask(ctx, req.Query, req.AskOptions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ask failed")
		slog.Error("ask error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func listOptions(r *http.Request) akasha.ListOptions {
	q := r.URL.Query()
	opts := akasha.ListOptions{
		Label: q.Get("label"),
		Type:  q.Get("type"),
	}
	if v := q.Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	return opts
}

// GET /entities
func (h *handler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.engine.ListEntities(r.Context(), listOptions(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		slog.Error("list entities error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

// GET /entities/{id}
func (h *handler) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := h.engine.FindEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// PATCH /entities/{id}
func (h *handler) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	props, ok := decodeProps(w, r)
	if !ok {
		return
	}
	entity, err := h.engine.UpdateEntity(r.Context(), r.PathValue("id"), props)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		slog.Error("update entity error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// DELETE /entities/{id}
func (h *handler) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.DeleteEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete entity error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context(), listOptions(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// GET /documents/{id}
func (h *handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.engine.FindDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// PATCH /documents/{id}
func (h *handler) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	props, ok := decodeProps(w, r)
	if !ok {
		return
	}
	doc, err := h.engine.UpdateDocument(r.Context(), r.PathValue("id"), props)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		slog.Error("update document error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.DeleteDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete document error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /relationships
func (h *handler) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.engine.ListRelationships(r.Context(), listOptions(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list relationships")
		slog.Error("list relationships error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": rels})
}

// GET /relationships/{id}
func (h *handler) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := h.engine.FindRelationship(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// PATCH /relationships/{id}
func (h *handler) handleUpdateRelationship(w http.ResponseWriter, r *http.Request) {
	props, ok := decodeProps(w, r)
	if !ok {
		return
	}
	rel, err := h.engine.UpdateRelationship(r.Context(), r.PathValue("id"), props)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		slog.Error("update relationship error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// DELETE /relationships/{id}
func (h *handler) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.DeleteRelationship(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete relationship error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.engine.HealthCheck(r.Context())
	status := http.StatusOK
	if health.Status == akasha.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func decodeProps(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var props map[string]any
	if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	if len(props) == 0 {
		writeError(w, http.StatusBadRequest, "properties are required")
		return nil, false
	}
	return props, true
}

func writeFindError(w http.ResponseWriter, err error) {
	if errors.Is(err, akasha.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "lookup failed")
	slog.Error("lookup error", "error", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
