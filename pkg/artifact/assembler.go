// Package artifact builds the generated patch files.
package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/sql"
)

// FileNameTimestampLayout is the sortable yyyyMMddHHmmss timestamp used in file names.
const FileNameTimestampLayout = "20060102150405"

// Assembler wraps rendered SQL with a provenance header and names the file.
type Assembler struct {
	now func() time.Time
}

// NewAssembler creates an Assembler using the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// NewAssemblerWithClock creates an Assembler with a custom clock.
func NewAssemblerWithClock(now func() time.Time) *Assembler {
	return &Assembler{now: now}
}

// Assemble builds the artifact for sqlText.
//
// Two artifacts for the same query and mode generated within the same second
// get the same file name.
func (a *Assembler) Assemble(query *models.QueryDefinition, mode models.ExecutionMode, values models.ParameterValues, sqlText string) *models.GeneratedArtifact {
	now := a.now()
	return &models.GeneratedArtifact{
		FileName: FileName(query.ID, mode, now),
		Header:   Header(query, mode, values, now),
		Body:     sqlText,
	}
}

// Header returns the five comment lines written at the top of every patch file.
func Header(query *models.QueryDefinition, mode models.ExecutionMode, values models.ParameterValues, at time.Time) string {
	// The ticket is user input inside a comment line; newlines would end the comment.
	ticket := strings.Join(strings.Fields(values.Get(models.TicketKey).String()), " ")
	if sql.IsNullValue(ticket) {
		ticket = sql.NullLiteral
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- Patch file generated at %s\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "-- Query: %s\n", query.DisplayName())
	fmt.Fprintf(&b, "-- ID: %s\n", query.ID)
	fmt.Fprintf(&b, "-- Ticket: %s\n", ticket)
	fmt.Fprintf(&b, "-- Mode: %s\n", mode)
	return b.String()
}

// FileName returns {queryID}_{mode}_{yyyyMMddHHmmss}.sql.
func FileName(queryID string, mode models.ExecutionMode, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.sql", queryID, mode, at.Format(FileNameTimestampLayout))
}
