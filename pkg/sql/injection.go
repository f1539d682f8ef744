package sql

import (
	"sort"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
)

// InjectionCheckResult contains the result of an injection check on a parameter value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name of the parameter that failed the check
	ParamValue  string // The value that was checked
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a parameter value.
//
// Values are escaped before they are written into a patch, so a match does not
// mean the generated SQL is unsafe. It flags input that looks like SQL rather
// than data, which strict deployments reject.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	result := CheckParameterForInjection("customer_id", "12345")
//	// result == nil
//
//	result := CheckParameterForInjection("search", "'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.ParamName == "search"
func CheckParameterForInjection(paramName, value string) *InjectionCheckResult {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}

// CheckAllParameters checks every value supplied for a declared parameter of
// query, every entry of list values, and every column of mass-upload rows.
// Results are ordered by parameter name.
func CheckAllParameters(query *models.QueryDefinition, values models.ParameterValues) []*InjectionCheckResult {
	var results []*InjectionCheckResult

	for _, p := range query.Parameters {
		for _, line := range values.Get(p.Name).Lines() {
			if result := CheckParameterForInjection(p.Name, line); result != nil {
				results = append(results, result)
				break
			}
		}
	}

	scalars := query.ScalarParameters()
	for _, row := range values.Get(models.MassFileKey).Lines() {
		for name, v := range ParseRow(row, scalars) {
			if result := CheckParameterForInjection(name, v.String()); result != nil {
				results = append(results, result)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ParamName < results[j].ParamName
	})
	return results
}
