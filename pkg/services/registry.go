package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/sql"
)

const templateExtension = ".sql"

// QueryRegistry holds the query templates loaded at start-up.
// It is never modified after construction and is safe for concurrent use.
type QueryRegistry struct {
	byID    map[string]*models.QueryDefinition
	ordered []*models.QueryDefinition
}

// LoadError records a template that could not be loaded.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewQueryRegistry builds a registry from already parsed definitions.
// Definitions with an empty, invalid or duplicate id are returned as load errors.
func NewQueryRegistry(queries []*models.QueryDefinition) (*QueryRegistry, []*LoadError) {
	r := &QueryRegistry{byID: make(map[string]*models.QueryDefinition, len(queries))}
	var loadErrs []*LoadError

	for _, q := range queries {
		if q.ID == "" {
			loadErrs = append(loadErrs, &LoadError{Source: q.SourceRef, Err: &sql.ParseError{Source: q.SourceRef, Reason: "id is required"}})
			continue
		}
		if !sql.ValidQueryID(q.ID) {
			loadErrs = append(loadErrs, &LoadError{Source: q.SourceRef, Err: &sql.ParseError{Source: q.SourceRef, Reason: fmt.Sprintf("invalid id %q", q.ID)}})
			continue
		}
		if existing, ok := r.byID[q.ID]; ok {
			loadErrs = append(loadErrs, &LoadError{
				Source: q.SourceRef,
				Err:    fmt.Errorf("%w: %q already defined by %s", apperrors.ErrDuplicate, q.ID, existing.SourceRef),
			})
			continue
		}
		r.byID[q.ID] = q
		r.ordered = append(r.ordered, q)
	}

	return r, loadErrs
}

// LoadQueryRegistry parses every *.sql file directly inside dir.
//
// Templates that fail to parse are logged and skipped; the remaining templates
// are still loaded. An error is returned only when dir cannot be read.
func LoadQueryRegistry(fs afero.Fs, dir string, logger *zap.Logger) (*QueryRegistry, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory %s: %w", dir, err)
	}

	var queries []*models.QueryDefinition
	var loadErrs []*LoadError

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), templateExtension) {
			continue
		}

		content, err := afero.ReadFile(fs, filepath.Join(dir, entry.Name()))
		if err != nil {
			loadErrs = append(loadErrs, &LoadError{Source: entry.Name(), Err: err})
			continue
		}

		result, err := sql.ParseTemplate(string(content), entry.Name())
		if err != nil {
			loadErrs = append(loadErrs, &LoadError{Source: entry.Name(), Err: err})
			continue
		}

		lintTemplate(result, logger)
		queries = append(queries, result.Query)
	}

	registry, dupErrs := NewQueryRegistry(queries)
	loadErrs = append(loadErrs, dupErrs...)

	for _, le := range loadErrs {
		var parseErr *sql.ParseError
		logger.Error("Skipping query template",
			zap.String("source", le.Source),
			zap.Bool("parse_error", errors.As(le, &parseErr)),
			zap.Error(le.Err))
	}

	logger.Info("Query templates loaded",
		zap.String("dir", dir),
		zap.Int("loaded", registry.Len()),
		zap.Int("skipped", len(loadErrs)))

	return registry, nil
}

// lintTemplate logs problems that do not prevent a template from loading.
func lintTemplate(result *sql.ParseResult, logger *zap.Logger) {
	q := result.Query
	fields := []zap.Field{zap.String("query_id", q.ID), zap.String("source", q.SourceRef)}

	if len(result.UnknownTypes) > 0 {
		logger.Warn("Unknown parameter types loaded as text",
			append(fields, zap.Strings("parameters", result.UnknownTypes))...)
	}

	report := sql.CheckPlaceholders(q.Body, q.Parameters)
	if len(report.Undeclared) > 0 {
		logger.Warn("Placeholders without a declared parameter will be left as is",
			append(fields, zap.Strings("placeholders", report.Undeclared))...)
	}
	if len(report.Unused) > 0 {
		logger.Warn("Declared parameters are never used in the template",
			append(fields, zap.Strings("parameters", report.Unused))...)
	}
	if len(report.InLiterals) > 0 {
		logger.Warn("Placeholders inside quoted literals will be double quoted",
			append(fields, zap.Strings("placeholders", report.InLiterals))...)
	}
}

// Get returns the query with the given id.
func (r *QueryRegistry) Get(id string) (*models.QueryDefinition, error) {
	q, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", id, apperrors.ErrNotFound)
	}
	return q, nil
}

// List returns all queries in load order (template file name order).
func (r *QueryRegistry) List() []*models.QueryDefinition {
	out := make([]*models.QueryDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of loaded queries.
func (r *QueryRegistry) Len() int {
	return len(r.ordered)
}
