package models

import "strings"

// ParameterType is the closed set of value kinds a template parameter can declare.
type ParameterType string

const (
	ParameterTypeText   ParameterType = "text"
	ParameterTypeNumber ParameterType = "number"
	ParameterTypeDate   ParameterType = "date"
	ParameterTypeFile   ParameterType = "file"
)

// ParseParameterType resolves a declared type string to a ParameterType.
// The second return value is false when the string is not a known type, in
// which case the parameter is treated as text.
func ParseParameterType(s string) (ParameterType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string", "varchar":
		return ParameterTypeText, true
	case "number", "integer", "int", "numeric", "decimal":
		return ParameterTypeNumber, true
	case "date":
		return ParameterTypeDate, true
	case "file":
		return ParameterTypeFile, true
	default:
		return ParameterTypeText, false
	}
}

// ParameterDefinition describes one parameter declared in a template header.
type ParameterDefinition struct {
	Name     string        `json:"name"`
	Type     ParameterType `json:"type"`
	Label    string        `json:"label"`
	Required bool          `json:"required"`
	IsFile   bool          `json:"is_file"` // list of values, rendered as an IN-clause literal list
}

// QueryDefinition is a parsed query template.
type QueryDefinition struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Tags        []string              `json:"tags,omitempty"`
	SourceRef   string                `json:"source_ref"`
	Parameters  []ParameterDefinition `json:"parameters"`

	// Body is the template SQL with the leading metadata block removed.
	Body string `json:"-"`
}

// DisplayName returns Name, or ID when the template declared no name.
func (q *QueryDefinition) DisplayName() string {
	if q.Name != "" {
		return q.Name
	}
	return q.ID
}

// HasFileParameter reports whether any declared parameter takes a list of values.
func (q *QueryDefinition) HasFileParameter() bool {
	for _, p := range q.Parameters {
		if p.IsFile {
			return true
		}
	}
	return false
}

// ScalarParameters returns the non-file parameters in declaration order.
// This is the column order used for mass generation.
func (q *QueryDefinition) ScalarParameters() []ParameterDefinition {
	var params []ParameterDefinition
	for _, p := range q.Parameters {
		if !p.IsFile {
			params = append(params, p)
		}
	}
	return params
}

// Parameter looks up a declared parameter by name.
func (q *QueryDefinition) Parameter(name string) (ParameterDefinition, bool) {
	for _, p := range q.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterDefinition{}, false
}
