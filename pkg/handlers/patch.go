package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/services"
	"github.com/ekaya-inc/ekaya-patch/pkg/storage"
)

// SQLContentType is the media type of generated patch files.
const SQLContentType = "application/sql; charset=utf-8"

// PatchHandler handles patch generation requests.
type PatchHandler struct {
	patchService   services.PatchService
	store          storage.ArtifactStore
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewPatchHandler creates a new patch handler.
func NewPatchHandler(patchService services.PatchService, store storage.ArtifactStore, maxUploadBytes int64, logger *zap.Logger) *PatchHandler {
	return &PatchHandler{
		patchService:   patchService,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the patch handler's routes on the given mux.
func (h *PatchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/patch/{id}", h.Generate)
	mux.HandleFunc("POST /api/patch/{id}/masse", h.GenerateMass)
}

// Generate handles POST /api/patch/{id}.
// The executionType field selects the mode; unitary when omitted.
func (h *PatchHandler) Generate(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, "")
}

// GenerateMass handles POST /api/patch/{id}/masse.
// The request must upload a masseFile; executionType is ignored.
func (h *PatchHandler) GenerateMass(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, models.ExecutionModeMass)
}

func (h *PatchHandler) generate(w http.ResponseWriter, r *http.Request, forcedMode models.ExecutionMode) {
	queryID, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}

	query, err := h.patchService.GetQuery(r.Context(), queryID)
	if err != nil {
		WriteServiceError(w, err, "Failed to get query", h.logger)
		return
	}

	if err := parseForm(w, r, h.maxUploadBytes); err != nil {
		h.writeFormError(w, err)
		return
	}

	mode := forcedMode
	if mode == "" {
		mode, err = models.ParseExecutionMode(r.Form.Get(ExecutionTypeField))
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	values, err := ParameterValuesFromForm(r, query)
	if err != nil {
		WriteServiceError(w, err, "Failed to read request", h.logger)
		return
	}

	generated, err := h.patchService.Generate(r.Context(), &services.GenerateRequest{
		QueryID:  query.ID,
		Mode:     mode,
		Values:   values,
		ClientIP: r.RemoteAddr,
	})
	if err != nil {
		WriteServiceError(w, err, "Failed to generate patch", h.logger)
		return
	}

	h.serveFile(w, generated.FileName)
}

// serveFile streams the written patch file back as an attachment.
func (h *PatchHandler) serveFile(w http.ResponseWriter, fileName string) {
	f, size, err := h.store.Open(fileName)
	if err != nil {
		h.logger.Error("Failed to open generated patch", zap.String("file", fileName), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to read generated patch"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", SQLContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		h.logger.Error("Failed to send patch file", zap.String("file", fileName), zap.Error(err))
	}
}

func (h *PatchHandler) writeFormError(w http.ResponseWriter, err error) {
	status, message := http.StatusBadRequest, "Invalid form data"

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status, message = http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit)
	}

	h.logger.Debug("Failed to parse form", zap.Error(err))
	if err := ErrorResponse(w, status, "invalid_request", message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
