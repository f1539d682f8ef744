package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-patch/pkg/services"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestPatchHandler_GenerateUnitary(t *testing.T) {
	env := newTestEnv(t, services.PatchServiceConfig{})

	req := multipartRequest(t, "/api/patch/update-person", map[string]string{
		"person_id":  "7",
		"new_name":   "O'Brien",
		"birth_date": "1990-04-01",
		"ticket":     "JIRA-42",
	}, nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, SQLContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="update-person_unitaire_20251130140509.sql"`, rec.Header().Get("Content-Disposition"))

	expected := "-- Patch file generated at 2025-11-30T14:05:09Z\n" +
		"-- Query: Update a person\n" +
		"-- ID: update-person\n" +
		"-- Ticket: JIRA-42\n" +
		"-- Mode: unitaire\n" +
		"\n" +
		"UPDATE person SET name = 'O''Brien', birth_date = '01/04/90' WHERE id = 7;"
	assert.Equal(t, expected, rec.Body.String())
	assert.Equal(t, strconv.Itoa(len(expected)), rec.Header().Get("Content-Length"))

	written, err := afero.ReadFile(env.fs, "/out/update-person_unitaire_20251130140509.sql")
	require.NoError(t, err)
	assert.Equal(t, expected, string(written))
}

func TestPatchHandler_URLEncodedForm(t *testing.T) {
	env := newTestEnv(t, services.PatchServiceConfig{})

	form := url.Values{"person_id": {"3"}, "new_name": {"null"}}
	req := httptest.NewRequest(http.MethodPost, "/api/patch/update-person", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "-- Ticket: NULL\n")
	assert.True(t, strings.HasSuffix(rec.Body.String(), "UPDATE person SET name = NULL, birth_date = NULL WHERE id = 3;"))
}

func TestPatchHandler_FileParameterUpload(t *testing.T) {
	env := newTestEnv(t, services.PatchServiceConfig{})

	req := multipartRequest(t, "/api/patch/activate-contracts",
		map[string]string{"status": "ACTIVE"},
		map[string]string{"ids": "\uFEFFC1\r\n\r\n  C2  \r\nnull\r\nC'3\n"})
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasSuffix(rec.Body.String(),
		"UPDATE contract SET status = 'ACTIVE' WHERE id IN ('C1', 'C2', 'C''3');"))
}

func TestPatchHandler_FileParameterAsTextField(t *testing.T) {
	env := newTestEnv(t, services.PatchServiceConfig{})

	req := multipartRequest(t, "/api/patch/activate-contracts",
		map[string]string{"status": "CLOSED", "ids": "A1\nA2"}, nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasSuffix(rec.Body.String(), "WHERE id IN ('A1', 'A2');"))
}

func TestPatchHandler_MassEndpoint(t *testing.T) {
	env := newTestEnv(t, services.PatchServiceConfig{})

	req := multipartRequest(t, "/api/patch/update-person/masse",
		map[string]string{"ticket": "OPS-1", "executionType": "unitaire"},
		map[string]string{"masseFile": "1,Alice\n\n2,Bob,2000-01-05\n"})
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="update-person_masse_20251130140509.sql"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.Contains(t, body, "-- Mode: masse\n")
	assert.Contains(t, body, "-- Ticket: OPS-1\n")
	assert.True(t, strings.HasSuffix(body,
		"-- Row 1/2\nUPDATE person SET name = 'Alice', birth_date = NULL WHERE id = 1;\n\n"+
			"-- Row 2/2\nUPDATE person SET name = 'Bob', birth_date = '05/01/00' WHERE id = 2;"))
}

func TestPatchHandler_ExecutionTypeMasse(t *testing.T) {
	env := newTestEnv(t, services.PatchServiceConfig{})

	req := multipartRequest(t, "/api/patch/update-person",
		map[string]string{"executionType": "MASSE"},
		map[string]string{"masseFile": "9,Zed"})
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "-- Row 1/1\nUPDATE person SET name = 'Zed', birth_date = NULL WHERE id = 9;")
}

func TestPatchHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		cfg        services.PatchServiceConfig
		target     string
		fields     map[string]string
		files      map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown query",
			target:     "/api/patch/nope",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "unknown query on mass endpoint",
			target:     "/api/patch/nope/masse",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "unknown execution type",
			target:     "/api/patch/update-person",
			fields:     map[string]string{"executionType": "bulk"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "mass endpoint without file",
			target:     "/api/patch/update-person/masse",
			fields:     map[string]string{"ticket": "OPS-1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "mass endpoint with only blank lines",
			target:     "/api/patch/update-person/masse",
			files:      map[string]string{"masseFile": "\n  \n"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "mass endpoint on query with list parameter",
			target:     "/api/patch/activate-contracts/masse",
			files:      map[string]string{"masseFile": "ACTIVE"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "required parameter missing when enforced",
			cfg:        services.PatchServiceConfig{EnforceRequired: true},
			target:     "/api/patch/update-person",
			fields:     map[string]string{"person_id": "1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.cfg)
			rec := httptest.NewRecorder()

			env.mux.ServeHTTP(rec, multipartRequest(t, tt.target, tt.fields, tt.files))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec)["error"])

			entries, err := afero.ReadDir(env.fs, "/out")
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestPatchHandler_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, services.PatchServiceConfig{})

	req := multipartRequest(t, "/api/patch/activate-contracts",
		map[string]string{"status": "ACTIVE"},
		map[string]string{"ids": strings.Repeat("C123456789\n", 200_000)})
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
	assert.Less(t, rec.Code, http.StatusInternalServerError)
	assert.Equal(t, "invalid_request", decodeError(t, rec)["error"])
}
