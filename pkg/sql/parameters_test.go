package sql

import (
	"reflect"
	"testing"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
)

func TestExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "no parameters",
			sql:      "UPDATE person SET active = 0",
			expected: nil,
		},
		{
			name:     "single parameter",
			sql:      "DELETE FROM person WHERE id = {{person_id}}",
			expected: []string{"person_id"},
		},
		{
			name:     "multiple parameters",
			sql:      "UPDATE person SET name = {{new_name}} WHERE id = {{person_id}}",
			expected: []string{"new_name", "person_id"},
		},
		{
			name:     "duplicate parameter appears once",
			sql:      "UPDATE account SET owner = {{user_id}} WHERE created_by = {{user_id}}",
			expected: []string{"user_id"},
		},
		{
			name:     "parameter starting with underscore",
			sql:      "UPDATE temp SET value = {{_private}}",
			expected: []string{"_private"},
		},
		{
			name:     "parameter inside IN list",
			sql:      "UPDATE orders SET status = {{status}} WHERE id IN ({{ids}})",
			expected: []string{"status", "ids"},
		},
		{
			name:     "mixed case parameter names",
			sql:      "UPDATE items SET itemType = {{itemType}} WHERE userId = {{userId}}",
			expected: []string{"itemType", "userId"},
		},
		{
			name:     "parameter in subquery",
			sql:      "DELETE FROM orders WHERE customer_id IN (SELECT id FROM customers WHERE status = {{status}})",
			expected: []string{"status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractParameters(tt.sql)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestExtractParameters_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "empty string",
			sql:      "",
			expected: nil,
		},
		{
			name:     "malformed placeholder - single brace",
			sql:      "DELETE FROM users WHERE id = {user_id}",
			expected: nil,
		},
		{
			name:     "malformed placeholder - starts with number",
			sql:      "DELETE FROM users WHERE id = {{123abc}}",
			expected: nil,
		},
		{
			name:     "parameter in comment (still extracted)",
			sql:      "UPDATE users SET active = 0 -- WHERE id = {{user_id}}\nWHERE status = {{status}}",
			expected: []string{"user_id", "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractParameters(tt.sql)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCheckPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		params   []models.ParameterDefinition
		expected PlaceholderReport
	}{
		{
			name: "all parameters declared and used",
			sql:  "UPDATE person SET name = {{new_name}} WHERE id = {{person_id}}",
			params: []models.ParameterDefinition{
				{Name: "person_id", Type: models.ParameterTypeNumber},
				{Name: "new_name", Type: models.ParameterTypeText},
			},
			expected: PlaceholderReport{},
		},
		{
			name: "placeholder not declared",
			sql:  "UPDATE person SET name = {{new_name}} WHERE id = {{person_id}}",
			params: []models.ParameterDefinition{
				{Name: "person_id", Type: models.ParameterTypeNumber},
			},
			expected: PlaceholderReport{Undeclared: []string{"new_name"}},
		},
		{
			name: "parameter declared but unused",
			sql:  "DELETE FROM person WHERE id = {{person_id}}",
			params: []models.ParameterDefinition{
				{Name: "person_id", Type: models.ParameterTypeNumber},
				{Name: "reason", Type: models.ParameterTypeText},
			},
			expected: PlaceholderReport{Unused: []string{"reason"}},
		},
		{
			name: "placeholder quoted by the template author",
			sql:  "UPDATE person SET name = '{{new_name}}'",
			params: []models.ParameterDefinition{
				{Name: "new_name", Type: models.ParameterTypeText},
			},
			expected: PlaceholderReport{InLiterals: []string{"new_name"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := CheckPlaceholders(tt.sql, tt.params)
			if !reflect.DeepEqual(report, tt.expected) {
				t.Errorf("got %+v, want %+v", report, tt.expected)
			}
			if report.IsClean() != tt.expected.IsClean() {
				t.Errorf("IsClean() = %v, want %v", report.IsClean(), tt.expected.IsClean())
			}
		})
	}
}

func TestFindParametersInStringLiterals(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "no parameters",
			sql:      "UPDATE users SET active = 0",
			expected: nil,
		},
		{
			name:     "parameter outside string - OK",
			sql:      "UPDATE users SET name = {{name}}",
			expected: nil,
		},
		{
			name:     "parameter inside string literal - problematic",
			sql:      "UPDATE users SET greeting = 'Hello {{name}}'",
			expected: []string{"name"},
		},
		{
			name:     "parameter both inside and outside string",
			sql:      "UPDATE users SET greeting = 'Hello {{name}}' WHERE id = {{user_id}}",
			expected: []string{"name"},
		},
		{
			name:     "parameter in LIKE pattern",
			sql:      "DELETE FROM logs WHERE message LIKE '%{{search}}%'",
			expected: []string{"search"},
		},
		{
			name:     "escaped single quotes - parameter still detected",
			sql:      "UPDATE users SET note = 'It''s {{name}}''s turn'",
			expected: []string{"name"},
		},
		{
			name:     "empty string literal - no parameters",
			sql:      "UPDATE users SET note = '' WHERE id = {{user_id}}",
			expected: nil,
		},
		{
			name:     "parameter in concatenation - OK (outside quotes)",
			sql:      "UPDATE users SET greeting = 'Hello ' || {{name}}",
			expected: nil,
		},
		{
			name:     "same parameter inside string appears once in result",
			sql:      "UPDATE users SET note = '{{name}} says hello to {{name}}'",
			expected: []string{"name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindParametersInStringLiterals(tt.sql)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}
