package sql

import (
	"regexp"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
)

// parameterRegex matches {{parameter_name}} placeholders in SQL templates.
// Parameter names must start with a letter or underscore, followed by any
// number of alphanumeric characters or underscores.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ExtractParameters finds all {{param}} placeholders in SQL and returns
// a deduplicated list of parameter names in order of first appearance.
//
// Example:
//
//	sql := "UPDATE person SET name = {{new_name}} WHERE id = {{person_id}}"
//	params := ExtractParameters(sql)
//	// params == []string{"new_name", "person_id"}
//
// If the same parameter appears multiple times, it's only included once:
//
//	sql := "UPDATE account SET owner = {{user_id}} WHERE created_by = {{user_id}}"
//	params := ExtractParameters(sql)
//	// params == []string{"user_id"}
func ExtractParameters(sqlQuery string) []string {
	matches := parameterRegex.FindAllStringSubmatch(sqlQuery, -1)
	seen := make(map[string]bool)
	var params []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}

	return params
}

// PlaceholderReport lists mismatches between a template body and its declared
// parameters. Neither kind of mismatch prevents loading: undeclared
// placeholders are left verbatim when rendering.
type PlaceholderReport struct {
	Undeclared []string // {{name}} used in the body but not declared
	Unused     []string // declared but never referenced in the body
	InLiterals []string // placeholders written inside a quoted string literal
}

// IsClean reports whether the template has no placeholder problems.
func (r PlaceholderReport) IsClean() bool {
	return len(r.Undeclared) == 0 && len(r.Unused) == 0 && len(r.InLiterals) == 0
}

// CheckPlaceholders compares the placeholders used in body with params.
//
// Example:
//
//	body := "DELETE FROM orders WHERE customer_id = {{customer_id}} AND status = {{status}}"
//	params := []models.ParameterDefinition{
//	    {Name: "customer_id", Type: models.ParameterTypeNumber},
//	    {Name: "reason", Type: models.ParameterTypeText},
//	}
//	report := CheckPlaceholders(body, params)
//	// report.Undeclared == []string{"status"}
//	// report.Unused == []string{"reason"}
func CheckPlaceholders(body string, params []models.ParameterDefinition) PlaceholderReport {
	extracted := ExtractParameters(body)

	extractedSet := make(map[string]bool)
	for _, name := range extracted {
		extractedSet[name] = true
	}

	definedSet := make(map[string]bool)
	for _, p := range params {
		definedSet[p.Name] = true
	}

	var report PlaceholderReport
	for _, name := range extracted {
		if !definedSet[name] {
			report.Undeclared = append(report.Undeclared, name)
		}
	}
	for _, p := range params {
		if !extractedSet[p.Name] {
			report.Unused = append(report.Unused, p.Name)
		}
	}
	report.InLiterals = FindParametersInStringLiterals(body)

	return report
}

// FindParametersInStringLiterals checks for {{param}} placeholders that appear
// inside SQL string literals (single quotes). Values are rendered with their
// own quotes, so a placeholder inside a literal ends up double quoted.
//
// Returns a list of parameter names that are incorrectly placed inside strings.
//
// Example:
//
//	sql := "UPDATE person SET name = '{{name}}'"
//	problems := FindParametersInStringLiterals(sql)
//	// problems == []string{"name"}
//
//	sql := "UPDATE person SET name = {{name}}"
//	problems := FindParametersInStringLiterals(sql)
//	// problems == nil (parameter is correctly placed)
func FindParametersInStringLiterals(sqlQuery string) []string {
	var problems []string
	seen := make(map[string]bool)

	// Track position within string literals
	inString := false
	stringStart := 0
	i := 0

	for i < len(sqlQuery) {
		ch := sqlQuery[i]

		if ch == '\'' {
			if inString {
				// Check for escaped quote ('')
				if i+1 < len(sqlQuery) && sqlQuery[i+1] == '\'' {
					i += 2
					continue
				}
				stringContent := sqlQuery[stringStart+1 : i]
				matches := parameterRegex.FindAllStringSubmatch(stringContent, -1)
				for _, match := range matches {
					name := match[1]
					if !seen[name] {
						seen[name] = true
						problems = append(problems, name)
					}
				}
				inString = false
			} else {
				inString = true
				stringStart = i
			}
		}
		i++
	}

	return problems
}
