package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/sql"
)

const (
	// ExecutionTypeField selects the execution mode on POST /api/patch/{id}.
	ExecutionTypeField = "executionType"
)

// ParseQueryID extracts the query ID from the request path.
// Returns the ID and true on success, or "" and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseQueryID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_query_id", "Query ID is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return id, true
}

// parseForm parses a urlencoded or multipart body, keeping at most maxBytes.
func parseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	err := r.ParseMultipartForm(maxBytes)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	return err
}

// ParameterValuesFromForm collects the values for query from a parsed form.
//
// Scalar parameters and the ticket come from form fields. List parameters and
// the mass file come from uploaded files, one value per line; a plain form
// field with newline separated values is accepted for list parameters too.
// Parameters missing from the form are left absent.
func ParameterValuesFromForm(r *http.Request, query *models.QueryDefinition) (models.ParameterValues, error) {
	values := make(models.ParameterValues)

	if r.Form.Has(models.TicketKey) {
		values[models.TicketKey] = models.Scalar(r.Form.Get(models.TicketKey))
	}

	for _, p := range query.Parameters {
		if !p.IsFile {
			if r.Form.Has(p.Name) {
				values[p.Name] = models.Scalar(r.Form.Get(p.Name))
			}
			continue
		}

		lines, ok, err := uploadedLines(r, p.Name)
		if err != nil {
			return nil, err
		}
		if !ok && r.Form.Has(p.Name) {
			lines, err = sql.ReadValueLines(strings.NewReader(r.Form.Get(p.Name)))
			if err != nil {
				return nil, err
			}
			ok = true
		}
		if ok {
			values[p.Name] = models.List(lines)
		}
	}

	lines, ok, err := uploadedLines(r, models.MassFileKey)
	if err != nil {
		return nil, err
	}
	if ok {
		values[models.MassFileKey] = models.List(lines)
	}

	return values, nil
}

// uploadedLines reads the first file uploaded under field.
func uploadedLines(r *http.Request, field string) ([]string, bool, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, false, nil
	}

	lines, err := readFileHeader(r.MultipartForm.File[field][0])
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to read upload %q: %v", apperrors.ErrValidation, field, err)
	}
	return lines, true, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sql.ReadValueLines(f)
}
