package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-patch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-patch/pkg/models"
)

// MaxInListSize is the largest number of values placed in a single IN list.
// Oracle rejects IN lists of 1000 elements or more.
const MaxInListSize = 999

// statementSeparator is placed between batches and between mass rows.
const statementSeparator = "\n\n"

// placeholderRegex matches any {{token}}. Substitution accepts every declared
// name, including names parameterRegex would not extract.
var placeholderRegex = regexp.MustCompile(`\{\{([^{}\s]+)\}\}`)

// Render fills the placeholders of query.Body with values.
//
// In unitary mode every declared parameter is substituted once; when a list
// parameter holds more than MaxInListSize values the statement is repeated
// once per chunk of the list (see RenderBatched). In mass mode the template is
// repeated once per line of values[models.MassFileKey] (see RenderMass).
//
// Placeholders that do not match a declared parameter are left untouched.
func Render(query *models.QueryDefinition, values models.ParameterValues, mode models.ExecutionMode) (string, error) {
	switch mode {
	case models.ExecutionModeMass:
		rows := values.Get(models.MassFileKey).Lines()
		if len(rows) == 0 {
			return "", fmt.Errorf("%w: mass execution requires a non-empty %s upload", apperrors.ErrValidation, models.MassFileKey)
		}
		return RenderMass(query, rows, values), nil
	case models.ExecutionModeUnitary, "":
		if param, ok := batchParameter(query, values); ok {
			return RenderBatched(query, param, values), nil
		}
		return RenderUnitary(query, values), nil
	default:
		return "", fmt.Errorf("%w: unknown execution type %q", apperrors.ErrValidation, mode)
	}
}

// RenderUnitary substitutes every declared parameter once. Parameters missing
// from values render as NULL.
func RenderUnitary(query *models.QueryDefinition, values models.ParameterValues) string {
	return substitute(query.Body, literalsFor(query.Parameters, values))
}

// RenderBatched splits the values of the list parameter param into chunks of
// at most MaxInListSize and renders the template once per chunk, each copy
// preceded by a "-- Batch i/n (k values)" comment. Every other parameter gets
// the same literal in every copy.
func RenderBatched(query *models.QueryDefinition, param models.ParameterDefinition, values models.ParameterValues) string {
	literals := literalsFor(query.Parameters, values)
	chunks := chunkValues(values.Get(param.Name).Lines(), MaxInListSize)

	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString(statementSeparator)
		}
		fmt.Fprintf(&b, "-- Batch %d/%d (%d values)\n", i+1, len(chunks), len(chunk))

		literals[param.Name] = FormatInList(chunk)
		b.WriteString(substitute(query.Body, literals))
	}
	return b.String()
}

// RenderMass renders the template once per CSV row.
//
// Columns map by position to the non-file parameters in declaration order;
// extra columns are ignored. A parameter whose column is missing or empty takes
// its value from globals (for example a ticket shared by the whole upload) and
// renders as NULL when globals has none. Each copy is preceded by a
// "-- Row i/n" comment.
func RenderMass(query *models.QueryDefinition, rows []string, globals models.ParameterValues) string {
	scalars := query.ScalarParameters()

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString(statementSeparator)
		}
		fmt.Fprintf(&b, "-- Row %d/%d\n", i+1, len(rows))

		rowValues := mergeRow(scalars, row, globals)
		b.WriteString(substitute(query.Body, literalsFor(query.Parameters, rowValues)))
	}
	return b.String()
}

// ParseRow maps the comma-separated columns of row onto params by position.
// Empty columns are omitted from the result.
func ParseRow(row string, params []models.ParameterDefinition) models.ParameterValues {
	columns := strings.Split(strings.TrimRight(row, "\r"), ",")
	values := make(models.ParameterValues, len(params))
	for i := 0; i < len(columns) && i < len(params); i++ {
		if column := strings.TrimSpace(columns[i]); column != "" {
			values[params[i].Name] = models.Scalar(column)
		}
	}
	return values
}

func mergeRow(scalars []models.ParameterDefinition, row string, globals models.ParameterValues) models.ParameterValues {
	merged := make(models.ParameterValues, len(globals))
	for name, v := range globals {
		if name == models.MassFileKey {
			continue
		}
		merged[name] = v
	}
	for name, v := range ParseRow(row, scalars) {
		merged[name] = v
	}
	return merged
}

// batchParameter returns the first list parameter whose value exceeds MaxInListSize.
func batchParameter(query *models.QueryDefinition, values models.ParameterValues) (models.ParameterDefinition, bool) {
	for _, p := range query.Parameters {
		if !p.IsFile {
			continue
		}
		if v := values.Get(p.Name); v.IsList() && len(v.Lines()) > MaxInListSize {
			return p, true
		}
	}
	return models.ParameterDefinition{}, false
}

// chunkValues splits values into consecutive chunks of at most size entries.
func chunkValues(values []string, size int) [][]string {
	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

func literalsFor(params []models.ParameterDefinition, values models.ParameterValues) map[string]string {
	literals := make(map[string]string, len(params))
	for _, p := range params {
		literals[p.Name] = CoerceValue(p, values.Get(p.Name))
	}
	return literals
}

// substitute replaces declared placeholders in one pass, so placeholder-like
// text inside a value is never expanded.
func substitute(body string, literals map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(body, func(match string) string {
		name := match[2 : len(match)-2]
		if literal, ok := literals[name]; ok {
			return literal
		}
		return match
	})
}
