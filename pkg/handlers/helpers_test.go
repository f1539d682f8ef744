package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/artifact"
	"github.com/ekaya-inc/ekaya-patch/pkg/audit"
	"github.com/ekaya-inc/ekaya-patch/pkg/services"
	"github.com/ekaya-inc/ekaya-patch/pkg/storage"
)

var testTime = time.Date(2025, 11, 30, 14, 5, 9, 0, time.UTC)

var testTemplates = map[string]string{
	"update_person.sql": `-- @id: update-person
-- @name: Update a person
-- @description: Renames a person
-- @tags: person, rename
-- @param: person_id|number|Person ID|true
-- @param: new_name|text|New name|true
-- @param: birth_date|date|Birth date
UPDATE person SET name = {{new_name}}, birth_date = {{birth_date}} WHERE id = {{person_id}};`,
	"activate_contracts.sql": `-- @id: activate-contracts
-- @param: status|text|Status|true
-- @param-file: ids|text|Contract IDs|true
UPDATE contract SET status = {{status}} WHERE id IN ({{ids}});`,
}

type testEnv struct {
	service services.PatchService
	store   *storage.FileStore
	fs      afero.Fs
	mux     *http.ServeMux
}

func newTestEnv(t *testing.T, cfg services.PatchServiceConfig) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/templates", 0o755))
	for name, content := range testTemplates {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/templates", name), []byte(content), 0o644))
	}

	logger := zap.NewNop()
	registry, err := services.LoadQueryRegistry(fs, "/templates", logger)
	require.NoError(t, err)

	store, err := storage.NewFileStore(fs, "/out", logger)
	require.NoError(t, err)

	assembler := artifact.NewAssemblerWithClock(func() time.Time { return testTime })
	service := services.NewPatchService(registry, assembler, store, audit.NewSecurityAuditor(logger), cfg, logger)

	mux := http.NewServeMux()
	NewPatchHandler(service, store, 1<<20, logger).RegisterRoutes(mux)
	NewQueriesHandler(service, logger).RegisterRoutes(mux)
	NewOpenAPIHandler(service, "test-version", logger).RegisterRoutes(mux)

	return &testEnv{service: service, store: store, fs: fs, mux: mux}
}

// multipartRequest builds a multipart POST with form fields and file uploads.
func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, target, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
