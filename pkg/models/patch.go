package models

import (
	"fmt"
	"strings"
)

// ExecutionMode selects how a query template is expanded.
type ExecutionMode string

const (
	// ExecutionModeUnitary renders the template once (batched when an IN list is oversized).
	ExecutionModeUnitary ExecutionMode = "unitaire"
	// ExecutionModeMass renders the template once per row of an uploaded CSV file.
	ExecutionModeMass ExecutionMode = "masse"
)

// Reserved value keys that are not template parameters.
const (
	TicketKey   = "ticket"
	MassFileKey = "masseFile"
)

// ParseExecutionMode resolves a mode string. An empty string selects unitary mode.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExecutionModeUnitary:
		return ExecutionModeUnitary, nil
	case ExecutionModeMass:
		return ExecutionModeMass, nil
	default:
		return "", fmt.Errorf("unknown execution type %q", s)
	}
}

// ParameterValue holds a request value: a scalar string or an ordered list of lines.
// The zero value is an absent value.
type ParameterValue struct {
	scalar  string
	list    []string
	isList  bool
	present bool
}

// Scalar returns a single-string value.
func Scalar(s string) ParameterValue {
	return ParameterValue{scalar: s, present: true}
}

// List returns a list value. Callers must not modify lines afterwards.
func List(lines []string) ParameterValue {
	return ParameterValue{list: lines, isList: true, present: true}
}

// IsPresent reports whether a value was supplied.
func (v ParameterValue) IsPresent() bool { return v.present }

// IsList reports whether the value is a list.
func (v ParameterValue) IsList() bool { return v.isList }

// String returns the scalar value, or the first list entry for list values.
func (v ParameterValue) String() string {
	if v.isList {
		if len(v.list) == 0 {
			return ""
		}
		return v.list[0]
	}
	return v.scalar
}

// Lines returns the list entries. A scalar value yields a one-element list;
// an absent value yields nil.
func (v ParameterValue) Lines() []string {
	if !v.present {
		return nil
	}
	if v.isList {
		return v.list
	}
	return []string{v.scalar}
}

// ParameterValues maps parameter names (and the reserved ticket / masseFile keys)
// to request values.
type ParameterValues map[string]ParameterValue

// Get returns the value for name, absent when missing or when the map is nil.
func (pv ParameterValues) Get(name string) ParameterValue {
	if pv == nil {
		return ParameterValue{}
	}
	return pv[name]
}

// GeneratedArtifact is the content of one generated patch file.
type GeneratedArtifact struct {
	FileName string
	Header   string
	Body     string
}

// Content returns the full file content: header, blank line, SQL body.
func (a *GeneratedArtifact) Content() string {
	return a.Header + "\n" + a.Body
}
