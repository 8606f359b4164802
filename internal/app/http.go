package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"planpoint/api/internal/export"
	"planpoint/api/internal/placement"
	"planpoint/api/internal/render"
	"planpoint/api/internal/workspace"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"storage": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["storage"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/state" {
		payload, err := s.service.State(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/workspaces" {
		payload, err := s.service.State(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"workspaces":      payload.Workspaces,
			"activeWorkspace": payload.ActiveWorkspace,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/workspaces" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateWorkspace(r.Context(), body.Name)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/workspaces/open" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.LoadWorkspace(r.Context(), body.Name)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/workspaces/rename" {
		var body struct {
			OldName string `json:"oldName"`
			NewName string `json:"newName"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.RenameWorkspace(r.Context(), body.OldName, body.NewName)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/workspaces/delete" {
		var body struct {
			Name         string `json:"name"`
			Confirmation string `json:"confirmation"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.DeleteWorkspace(r.Context(), body.Name, body.Confirmation)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/workspaces/history" {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
			return
		}
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		entries, err := s.service.History(r.Context(), name, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents" {
		var body struct {
			Filename string `json:"filename"`
			Data     []byte `json:"data"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if len(body.Data) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "data is required", nil)
			return
		}
		payload, err := s.service.AddDocument(r.Context(), body.Filename, body.Data)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": payload})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/page" {
		var body struct {
			Page int `json:"page"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		page, err := s.service.SetPage(r.Context(), body.Page)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"page": page})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/placement/start" {
		var body struct {
			Data         []byte `json:"data"`
			OriginalName string `json:"originalName"`
			Source       string `json:"source"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if len(body.Data) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "data is required", nil)
			return
		}
		if err := s.service.StartPlacement(r.Context(), body.Data, body.OriginalName, body.Source); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stage": "awaitPlacement"})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/placement/position" {
		var body struct {
			X          float64 `json:"x"`
			Y          float64 `json:"y"`
			PageWidth  float64 `json:"pageWidth"`
			PageHeight float64 `json:"pageHeight"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PlaceAt(r.Context(), body.X, body.Y, body.PageWidth, body.PageHeight); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"placed": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/placement/confirm" {
		var body struct {
			Name    string `json:"name"`
			Comment string `json:"comment"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		point, committed, err := s.service.ConfirmPlacement(r.Context(), body.Name, body.Comment)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		if !committed {
			writeJSON(w, http.StatusOK, map[string]any{"committed": false, "aborted": true})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"committed": true, "point": point})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/placement/cancel" {
		s.service.CancelPlacement(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"stage": "idle"})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/infomode" {
		var body struct {
			On bool `json:"on"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.service.SetInfoMode(r.Context(), body.On)
		writeJSON(w, http.StatusOK, map[string]any{"infoMode": body.On})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/sessions/show-all" {
		var body struct {
			On bool `json:"on"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.service.SetShowAllSessions(r.Context(), body.On)
		writeJSON(w, http.StatusOK, map[string]any{"showAllSessions": body.On})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/points" {
		writeJSON(w, http.StatusOK, map[string]any{"points": s.service.Points(r.Context())})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/points/nearest" {
		x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
		y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
		pageW, errW := strconv.ParseFloat(r.URL.Query().Get("pageWidth"), 64)
		pageH, errH := strconv.ParseFloat(r.URL.Query().Get("pageHeight"), 64)
		if errX != nil || errY != nil || errW != nil || errH != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "x, y, pageWidth and pageHeight must be numbers", nil)
			return
		}
		point, err := s.service.NearestPoint(r.Context(), x, y, pageW, pageH)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"point": point})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/export/archive" {
		result, err := s.service.ExportArchive(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeAttachment(w, result)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/export/report" {
		result, err := s.service.ExportReport(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeAttachment(w, result)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/export/flatten" {
		var body struct {
			SurfaceURL string `json:"surfaceUrl"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.SurfaceURL) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "surfaceUrl is required", nil)
			return
		}
		result, err := s.service.FlattenView(r.Context(), body.SurfaceURL)
		if err != nil {
			log.Printf("flatten export failed: %v", err)
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeAttachment(w, result)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/export/upload" {
		object, err := s.service.UploadArchive(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": object})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/import" {
		var body struct {
			Name string `json:"name"`
			Data []byte `json:"data"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if len(body.Data) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "data is required", nil)
			return
		}
		payload, err := s.service.ImportArchive(r.Context(), body.Name, body.Data)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "document index must be an integer", nil)
			return
		}
		s.handleDocument(w, r, index, parts)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "points" {
		seq, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "point seq must be an integer", nil)
			return
		}
		s.handlePoint(w, r, seq, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, index int, parts []string) {
	if len(parts) == 3 && r.Method == http.MethodPut {
		var body struct {
			DisplayName string `json:"displayName"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.RenameDocument(r.Context(), index, body.DisplayName); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		var body struct {
			Confirmation string `json:"confirmation"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.DeleteDocument(r.Context(), index, body.Confirmation); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[3] == "select" && r.Method == http.MethodPost {
		if err := s.service.SelectDocument(r.Context(), index); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[3] == "pages" && r.Method == http.MethodPost {
		var body struct {
			PageCount int `json:"pageCount"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ReportPageCount(r.Context(), index, body.PageCount); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handlePoint(w http.ResponseWriter, r *http.Request, seq int, parts []string) {
	if len(parts) == 3 && r.Method == http.MethodPut {
		var body struct {
			Name    *string `json:"name"`
			Comment *string `json:"comment"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		point, err := s.service.UpdatePoint(r.Context(), seq, body.Name, body.Comment)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"point": point})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if err := s.service.RemovePoint(r.Context(), seq); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[3] == "photo" && r.Method == http.MethodPost {
		var body struct {
			Data         []byte `json:"data"`
			OriginalName string `json:"originalName"`
			Source       string `json:"source"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if len(body.Data) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "data is required", nil)
			return
		}
		point, err := s.service.AttachPhoto(r.Context(), seq, body.Data, body.OriginalName, body.Source)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"point": point})
		return
	}

	if len(parts) == 4 && parts[3] == "photo" && r.Method == http.MethodGet {
		photo, err := s.service.PointPhoto(r.Context(), seq)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+photo.Filename+"\"")
		w.Header().Set("Content-Type", photo.MimeType)
		w.Write(photo.Data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func writeAttachment(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	w.Header().Set("Content-Type", result.MimeType)
	w.Write(result.Data)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, workspace.ErrNameEmpty):
		return http.StatusUnprocessableEntity, "NAME_EMPTY", "Workspace name must not be empty", nil
	case errors.Is(err, workspace.ErrNameTaken):
		return http.StatusConflict, "NAME_TAKEN", "Workspace name already exists", nil
	case errors.Is(err, workspace.ErrNameUnchanged):
		return http.StatusUnprocessableEntity, "NAME_UNCHANGED", "New name matches the current name", nil
	case errors.Is(err, workspace.ErrUnknown):
		return http.StatusNotFound, "NOT_FOUND", "Unknown workspace", nil
	case errors.Is(err, workspace.ErrConfirmMismatch):
		return http.StatusConflict, "CONFIRM_MISMATCH", "Confirmation does not match", nil
	case errors.Is(err, workspace.ErrTooClose):
		return http.StatusUnprocessableEntity, "TOO_CLOSE", "Too close to an existing point", nil
	case errors.Is(err, workspace.ErrBadPosition):
		return http.StatusUnprocessableEntity, "BAD_POSITION", "Position is outside the page", nil
	case errors.Is(err, workspace.ErrBadDocument):
		return http.StatusUnprocessableEntity, "BAD_INDEX", "Document index out of range", nil
	case errors.Is(err, workspace.ErrBadPage):
		return http.StatusUnprocessableEntity, "BAD_PAGE", "Page outside the document page count", nil
	case errors.Is(err, workspace.ErrPointMissing):
		return http.StatusNotFound, "NOT_FOUND", "Point not found", nil
	case errors.Is(err, placement.ErrNoStagedPhoto):
		return http.StatusConflict, "NO_STAGED_PHOTO", "No photo is staged for placement", nil
	case errors.Is(err, placement.ErrNotPlaced):
		return http.StatusConflict, "NOT_PLACED", "No pending placement to confirm", nil
	case errors.Is(err, render.ErrDecode):
		return http.StatusUnprocessableEntity, "DOCUMENT_DECODE", "Plan file could not be decoded", nil
	case errors.Is(err, export.ErrFlattenDependencyMissing):
		return http.StatusServiceUnavailable, "FLATTEN_UNAVAILABLE", "Flattened export dependency missing", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
