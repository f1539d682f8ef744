package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/services"
)

// OpenAPIVersion is the OpenAPI specification version of the generated document.
const OpenAPIVersion = "3.0.3"

// OpenAPIDocument is the subset of an OpenAPI 3 document used to describe
// the patch endpoints.
type OpenAPIDocument struct {
	OpenAPI string                     `json:"openapi" yaml:"openapi"`
	Info    OpenAPIInfo                `json:"info" yaml:"info"`
	Paths   map[string]OpenAPIPathItem `json:"paths" yaml:"paths"`
}

type OpenAPIInfo struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
}

type OpenAPIPathItem struct {
	Post *OpenAPIOperation `json:"post,omitempty" yaml:"post,omitempty"`
}

type OpenAPIOperation struct {
	OperationID string                     `json:"operationId" yaml:"operationId"`
	Summary     string                     `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                     `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string                   `json:"tags,omitempty" yaml:"tags,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses" yaml:"responses"`
}

type OpenAPIRequestBody struct {
	Required bool                        `json:"required" yaml:"required"`
	Content  map[string]OpenAPIMediaType `json:"content" yaml:"content"`
}

type OpenAPIMediaType struct {
	Schema *OpenAPISchema `json:"schema" yaml:"schema"`
}

type OpenAPIResponse struct {
	Description string                      `json:"description" yaml:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

type OpenAPISchema struct {
	Type        string                    `json:"type" yaml:"type"`
	Format      string                    `json:"format,omitempty" yaml:"format,omitempty"`
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string                  `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     string                    `json:"default,omitempty" yaml:"default,omitempty"`
	Properties  map[string]*OpenAPISchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty" yaml:"required,omitempty"`
}

// OpenAPIHandler serves an OpenAPI document generated from the loaded queries.
type OpenAPIHandler struct {
	patchService services.PatchService
	version      string
	logger       *zap.Logger
}

// NewOpenAPIHandler creates a new OpenAPI handler.
func NewOpenAPIHandler(patchService services.PatchService, version string, logger *zap.Logger) *OpenAPIHandler {
	return &OpenAPIHandler{patchService: patchService, version: version, logger: logger}
}

// RegisterRoutes registers the OpenAPI handler's routes on the given mux.
func (h *OpenAPIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/openapi.json", h.JSON)
	mux.HandleFunc("GET /api/openapi.yaml", h.YAML)
}

// JSON handles GET /api/openapi.json
func (h *OpenAPIHandler) JSON(w http.ResponseWriter, r *http.Request) {
	doc := BuildOpenAPIDocument(h.patchService.ListQueries(r.Context()), h.version)
	if err := WriteJSON(w, http.StatusOK, doc); err != nil {
		h.logger.Error("Failed to write OpenAPI document", zap.Error(err))
	}
}

// YAML handles GET /api/openapi.yaml
func (h *OpenAPIHandler) YAML(w http.ResponseWriter, r *http.Request) {
	doc := BuildOpenAPIDocument(h.patchService.ListQueries(r.Context()), h.version)

	out, err := yaml.Marshal(doc)
	if err != nil {
		WriteServiceError(w, err, "Failed to encode OpenAPI document", h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		h.logger.Error("Failed to write OpenAPI document", zap.Error(err))
	}
}

// BuildOpenAPIDocument describes one POST endpoint per query, plus a mass
// endpoint for every query without list parameters.
func BuildOpenAPIDocument(queries []*models.QueryDefinition, version string) *OpenAPIDocument {
	doc := &OpenAPIDocument{
		OpenAPI: OpenAPIVersion,
		Info: OpenAPIInfo{
			Title:       "ekaya-patch",
			Description: "Generates SQL patch files from annotated query templates.",
			Version:     version,
		},
		Paths: make(map[string]OpenAPIPathItem, len(queries)),
	}

	for _, q := range queries {
		doc.Paths["/api/patch/"+q.ID] = OpenAPIPathItem{Post: unitaryOperation(q)}
		if !q.HasFileParameter() {
			doc.Paths["/api/patch/"+q.ID+"/masse"] = OpenAPIPathItem{Post: massOperation(q)}
		}
	}

	return doc
}

func unitaryOperation(q *models.QueryDefinition) *OpenAPIOperation {
	modes := []string{string(models.ExecutionModeUnitary)}
	if !q.HasFileParameter() {
		modes = append(modes, string(models.ExecutionModeMass))
	}

	form := &OpenAPISchema{
		Type: "object",
		Properties: map[string]*OpenAPISchema{
			models.TicketKey: {Type: "string", Description: "Ticket reference written to the patch header"},
			ExecutionTypeField: {
				Type:    "string",
				Enum:    modes,
				Default: string(models.ExecutionModeUnitary),
			},
		},
	}
	for _, p := range q.Parameters {
		form.Properties[p.Name] = parameterSchema(p)
		if p.Required {
			form.Required = append(form.Required, p.Name)
		}
	}

	return &OpenAPIOperation{
		OperationID: q.ID,
		Summary:     q.DisplayName(),
		Description: q.Description,
		Tags:        q.Tags,
		RequestBody: multipartBody(form),
		Responses:   patchResponses(),
	}
}

func massOperation(q *models.QueryDefinition) *OpenAPIOperation {
	description := "One statement per line of masseFile. Columns map in order to:"
	for _, p := range q.ScalarParameters() {
		description += " " + p.Name
	}

	form := &OpenAPISchema{
		Type: "object",
		Properties: map[string]*OpenAPISchema{
			models.TicketKey:   {Type: "string", Description: "Ticket reference written to the patch header"},
			models.MassFileKey: {Type: "string", Format: "binary", Description: "Comma separated values, one row per line"},
		},
		Required: []string{models.MassFileKey},
	}

	return &OpenAPIOperation{
		OperationID: q.ID + "-masse",
		Summary:     q.DisplayName() + " (mass)",
		Description: description,
		Tags:        q.Tags,
		RequestBody: multipartBody(form),
		Responses:   patchResponses(),
	}
}

func parameterSchema(p models.ParameterDefinition) *OpenAPISchema {
	if p.IsFile {
		return &OpenAPISchema{Type: "string", Format: "binary", Description: p.Label + " (one value per line)"}
	}

	s := &OpenAPISchema{Type: "string", Description: p.Label}
	switch p.Type {
	case models.ParameterTypeNumber:
		s.Type = "number"
	case models.ParameterTypeDate:
		s.Format = "date"
	}
	return s
}

func multipartBody(schema *OpenAPISchema) *OpenAPIRequestBody {
	return &OpenAPIRequestBody{
		Required: true,
		Content: map[string]OpenAPIMediaType{
			"multipart/form-data": {Schema: schema},
		},
	}
}

func patchResponses() map[string]OpenAPIResponse {
	errorBody := map[string]OpenAPIMediaType{
		"application/json": {Schema: &OpenAPISchema{
			Type: "object",
			Properties: map[string]*OpenAPISchema{
				"error":   {Type: "string"},
				"message": {Type: "string"},
			},
		}},
	}

	return map[string]OpenAPIResponse{
		"200": {
			Description: "Generated patch file",
			Content: map[string]OpenAPIMediaType{
				"application/sql": {Schema: &OpenAPISchema{Type: "string", Format: "binary"}},
			},
		},
		"400": {Description: "Invalid request", Content: errorBody},
		"404": {Description: "Unknown query", Content: errorBody},
		"500": {Description: "Patch could not be written", Content: errorBody},
	}
}
