package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
)

const (
	metadataPrefix     = "-- @"
	idDirective        = "-- @id:"
	minParamFieldCount = 3
	requiredFieldIndex = 3

	metadataKeyID        = "id"
	metadataKeyName      = "name"
	metadataKeyDesc      = "description"
	metadataKeyTags      = "tags"
	metadataKeyParam     = "param"
	metadataKeyParamFile = "param-file"
)

var (
	// queryIDRegex restricts ids to one file name token, since the id starts
	// the patch file name.
	queryIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

	// parameterNameRegex accepts the names a {{name}} placeholder can carry.
	parameterNameRegex = regexp.MustCompile(`^[^{}\s]+$`)
)

// ParseError is returned when a template cannot be loaded.
type ParseError struct {
	Source string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template %s: %s", e.Source, e.Reason)
}

// ParseResult holds a parsed template plus non-fatal findings about it.
type ParseResult struct {
	Query *models.QueryDefinition

	// UnknownTypes lists parameters whose declared type was not recognized
	// and which were loaded as text.
	UnknownTypes []string
}

// ParseTemplate reads the metadata header of an annotated SQL template.
//
// Header lines start with "-- @". Key/value directives use "-- @key: value";
// parameters use "-- @param: name|type|label|required" or the "-- @param-file:"
// variant for list parameters. Unknown keys are ignored. A template without a
// non-empty "-- @id:" directive, or whose id is not a single file name token
// (letters, digits, '_', '.', '-', not starting with '.', '_' or '-'), is
// rejected with a *ParseError.
//
// Example:
//
//	-- @id: update-person-name
//	-- @name: Update a person's name
//	-- @tags: person, update
//	-- @param: person_id|number|Person ID|true
//	-- @param: new_name|text|New name|true
//
//	UPDATE person SET name = {{new_name}} WHERE id = {{person_id}};
func ParseTemplate(content, source string) (*ParseResult, error) {
	lines := splitLines(content)

	metadata := make(map[string]string)
	var params []models.ParameterDefinition
	var unknownTypes []string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, metadataPrefix) {
			continue
		}

		key, value, ok := strings.Cut(line[len(metadataPrefix):], ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case metadataKeyParam, metadataKeyParamFile:
			param, known, ok := parseParameterLine(value, key == metadataKeyParamFile)
			if !ok {
				continue
			}
			if !known {
				unknownTypes = append(unknownTypes, param.Name)
			}
			params = append(params, param)
		default:
			metadata[key] = value
		}
	}

	id := metadata[metadataKeyID]
	if id == "" {
		return nil, &ParseError{
			Source: source,
			Reason: fmt.Sprintf("id is required: the file must contain a %s directive in its metadata", idDirective),
		}
	}
	if !ValidQueryID(id) {
		return nil, &ParseError{
			Source: source,
			Reason: fmt.Sprintf("invalid id %q: use letters, digits, '_', '.' and '-', starting with a letter or digit", id),
		}
	}

	if params == nil {
		params = []models.ParameterDefinition{}
	}

	query := &models.QueryDefinition{
		ID:          id,
		Name:        metadata[metadataKeyName],
		Description: metadata[metadataKeyDesc],
		Tags:        parseTags(metadata[metadataKeyTags]),
		SourceRef:   source,
		Parameters:  params,
		Body:        StripMetadata(content),
	}

	return &ParseResult{Query: query, UnknownTypes: unknownTypes}, nil
}

// parseParameterLine parses "name|type|label[|required]". ok is false when the
// line has fewer than three fields or a name that is empty or holds whitespace
// or braces; known is false when the type string is not recognized.
func parseParameterLine(value string, isFile bool) (param models.ParameterDefinition, known bool, ok bool) {
	parts := strings.Split(value, "|")
	if len(parts) < minParamFieldCount {
		return param, false, false
	}

	name := strings.TrimSpace(parts[0])
	if !parameterNameRegex.MatchString(name) {
		return param, false, false
	}

	paramType, known := models.ParseParameterType(parts[1])
	if isFile {
		// List parameters render every entry as a quoted literal regardless of
		// the declared element type.
		known = known || strings.TrimSpace(parts[1]) == ""
	}

	param = models.ParameterDefinition{
		Name:     name,
		Type:     paramType,
		Label:    strings.TrimSpace(parts[2]),
		Required: len(parts) > requiredFieldIndex && strings.EqualFold(strings.TrimSpace(parts[requiredFieldIndex]), "true"),
		IsFile:   isFile,
	}
	return param, known, true
}

// ValidQueryID reports whether id can name a query and start a patch file name.
func ValidQueryID(id string) bool {
	return queryIDRegex.MatchString(id)
}

func parseTags(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(value, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// StripMetadata removes the leading block of metadata and blank lines.
// Once another line is seen, it and everything after it is kept verbatim;
// only trailing whitespace is trimmed.
func StripMetadata(content string) string {
	lines := splitLines(content)

	start := len(lines)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, metadataPrefix) {
			continue
		}
		start = i
		break
	}

	return strings.TrimRight(strings.Join(lines[start:], "\n"), " \t\n")
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}
