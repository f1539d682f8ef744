package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/services"
)

// QueryResponse describes a loaded query template.
type QueryResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Source      string              `json:"source"`
	Parameters  []ParameterResponse `json:"parameters"`
	// SupportsMass is false for queries with list parameters.
	SupportsMass bool `json:"supports_mass"`
}

// ParameterResponse describes one template parameter.
type ParameterResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	IsFile   bool   `json:"is_file"`
}

// ListQueriesResponse wraps array for frontend compatibility.
type ListQueriesResponse struct {
	Queries []QueryResponse `json:"queries"`
}

// QueriesHandler exposes the loaded query templates.
type QueriesHandler struct {
	patchService services.PatchService
	logger       *zap.Logger
}

// NewQueriesHandler creates a new queries handler.
func NewQueriesHandler(patchService services.PatchService, logger *zap.Logger) *QueriesHandler {
	return &QueriesHandler{patchService: patchService, logger: logger}
}

// RegisterRoutes registers the queries handler's routes on the given mux.
func (h *QueriesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/queries", h.List)
	mux.HandleFunc("GET /api/queries/{id}", h.Get)
}

// List handles GET /api/queries
func (h *QueriesHandler) List(w http.ResponseWriter, r *http.Request) {
	queries := h.patchService.ListQueries(r.Context())

	data := ListQueriesResponse{Queries: make([]QueryResponse, 0, len(queries))}
	for _, q := range queries {
		data.Queries = append(data.Queries, toQueryResponse(q))
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/queries/{id}
func (h *QueriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	queryID, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}

	query, err := h.patchService.GetQuery(r.Context(), queryID)
	if err != nil {
		WriteServiceError(w, err, "Failed to get query", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: toQueryResponse(query)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func toQueryResponse(q *models.QueryDefinition) QueryResponse {
	params := make([]ParameterResponse, len(q.Parameters))
	for i, p := range q.Parameters {
		params[i] = ParameterResponse{
			Name:     p.Name,
			Type:     string(p.Type),
			Label:    p.Label,
			Required: p.Required,
			IsFile:   p.IsFile,
		}
	}

	return QueryResponse{
		ID:           q.ID,
		Name:         q.DisplayName(),
		Description:  q.Description,
		Tags:         q.Tags,
		Source:       q.SourceRef,
		Parameters:   params,
		SupportsMass: !q.HasFileParameter(),
	}
}
