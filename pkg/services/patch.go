package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-patch/pkg/artifact"
	"github.com/ekaya-inc/ekaya-patch/pkg/audit"
	"github.com/ekaya-inc/ekaya-patch/pkg/logging"
	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/retry"
	"github.com/ekaya-inc/ekaya-patch/pkg/sql"
	"github.com/ekaya-inc/ekaya-patch/pkg/storage"
)

// PatchService generates patch files from query templates.
type PatchService interface {
	// Generate renders the query, writes the patch file and returns the artifact.
	Generate(ctx context.Context, req *GenerateRequest) (*models.GeneratedArtifact, error)

	// ListQueries returns every loaded query.
	ListQueries(ctx context.Context) []*models.QueryDefinition

	// GetQuery returns one query or an error wrapping apperrors.ErrNotFound.
	GetQuery(ctx context.Context, id string) (*models.QueryDefinition, error)
}

// GenerateRequest contains everything needed to produce one patch file.
type GenerateRequest struct {
	QueryID string
	Mode    models.ExecutionMode
	Values  models.ParameterValues
	// ClientIP is recorded in audit events.
	ClientIP string
}

// PatchServiceConfig holds optional input checks.
type PatchServiceConfig struct {
	// EnforceRequired rejects requests where a required parameter has no value.
	// When false, missing values render as NULL.
	EnforceRequired bool
	// RejectInjection rejects values that libinjection classifies as SQL.
	// When false, such values are escaped as usual and only audited.
	RejectInjection bool
	// WriteRetry controls retries of transient output directory errors.
	// Nil uses retry.DefaultConfig.
	WriteRetry *retry.Config
}

type patchService struct {
	registry  *QueryRegistry
	assembler *artifact.Assembler
	store     storage.ArtifactStore
	auditor   *audit.SecurityAuditor
	cfg       PatchServiceConfig
	logger    *zap.Logger
}

var _ PatchService = (*patchService)(nil)

// NewPatchService creates a new patch service with dependencies.
func NewPatchService(
	registry *QueryRegistry,
	assembler *artifact.Assembler,
	store storage.ArtifactStore,
	auditor *audit.SecurityAuditor,
	cfg PatchServiceConfig,
	logger *zap.Logger,
) PatchService {
	return &patchService{
		registry:  registry,
		assembler: assembler,
		store:     store,
		auditor:   auditor,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *patchService) ListQueries(ctx context.Context) []*models.QueryDefinition {
	return s.registry.List()
}

func (s *patchService) GetQuery(ctx context.Context, id string) (*models.QueryDefinition, error) {
	return s.registry.Get(id)
}

// Generate looks up the query, validates the values, renders the SQL, adds
// the header and writes the file.
func (s *patchService) Generate(ctx context.Context, req *GenerateRequest) (*models.GeneratedArtifact, error) {
	query, err := s.registry.Get(req.QueryID)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = models.ExecutionModeUnitary
	}

	if err := s.validate(ctx, query, mode, req); err != nil {
		return nil, s.rejected(ctx, query, req, err)
	}

	sqlText, err := sql.Render(query, req.Values, mode)
	if err != nil {
		return nil, s.rejected(ctx, query, req, err)
	}

	generated := s.assembler.Assemble(query, mode, req.Values, sqlText)
	content := []byte(generated.Content())
	err = retry.DoIfRetryable(ctx, s.cfg.WriteRetry, func() error {
		return s.store.Write(generated.FileName, content)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write patch file: %w", err)
	}

	s.auditor.LogPatchGenerated(ctx, query.ID, audit.PatchDetails{
		FileName: generated.FileName,
		Mode:     string(mode),
		Ticket:   logging.TruncateString(req.Values.Get(models.TicketKey).String(), 64),
	}, req.ClientIP)

	s.logger.Debug("Patch file generated",
		zap.String("query_id", query.ID),
		zap.String("mode", string(mode)),
		zap.String("file", generated.FileName),
		zap.String("sql_preview", logging.SanitizeQuery(sqlText)))

	return generated, nil
}

// rejected audits validation failures and returns err unchanged.
func (s *patchService) rejected(ctx context.Context, query *models.QueryDefinition, req *GenerateRequest, err error) error {
	if errors.Is(err, apperrors.ErrValidation) {
		s.auditor.LogParameterValidation(ctx, query.ID, err.Error(), req.ClientIP)
	}
	return err
}

func (s *patchService) validate(ctx context.Context, query *models.QueryDefinition, mode models.ExecutionMode, req *GenerateRequest) error {
	values := req.Values

	if mode == models.ExecutionModeMass {
		if query.HasFileParameter() {
			return fmt.Errorf("%w: query %q has a list parameter and cannot run in %s mode", apperrors.ErrValidation, query.ID, mode)
		}
		if len(values.Get(models.MassFileKey).Lines()) == 0 {
			return fmt.Errorf("%w: %s mode requires a non-empty %s upload", apperrors.ErrValidation, mode, models.MassFileKey)
		}
	}

	// In mass mode the row columns supply the scalar parameters, so only
	// unitary requests can be checked up front.
	if s.cfg.EnforceRequired && mode == models.ExecutionModeUnitary {
		var missing []string
		for _, p := range query.Parameters {
			if p.Required && !hasValue(values.Get(p.Name)) {
				missing = append(missing, p.Name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: missing required parameters: %s", apperrors.ErrValidation, strings.Join(missing, ", "))
		}
	}

	results := sql.CheckAllParameters(query, values)
	for _, r := range results {
		s.auditor.LogInjectionAttempt(ctx, query.ID, audit.SQLInjectionDetails{
			ParamName:   r.ParamName,
			ParamValue:  r.ParamValue,
			Fingerprint: r.Fingerprint,
			QueryName:   query.DisplayName(),
			Rejected:    s.cfg.RejectInjection,
		}, req.ClientIP)
	}
	if s.cfg.RejectInjection && len(results) > 0 {
		return fmt.Errorf("%w: potential SQL injection detected in parameter '%s'", apperrors.ErrValidation, results[0].ParamName)
	}

	return nil
}

// hasValue reports whether v holds at least one non-null entry.
func hasValue(v models.ParameterValue) bool {
	for _, line := range v.Lines() {
		if !sql.IsNullValue(line) {
			return true
		}
	}
	return false
}
