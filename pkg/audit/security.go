// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/logging"
	"github.com/ekaya-inc/ekaya-patch/pkg/middleware"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection patterns.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventParameterValidation is logged when a generation request is rejected.
	EventParameterValidation SecurityEventType = "parameter_validation_failure"
	// EventPatchGenerated is logged for every patch file written.
	EventPatchGenerated SecurityEventType = "patch_generated"
)

// maxAuditedValueLength bounds parameter values copied into audit events.
const maxAuditedValueLength = 200

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	EventID   uuid.UUID         `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	QueryID   string            `json:"query_id"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	QueryName   string `json:"query_name"`
	// Rejected is true when the request was refused because of this value.
	// Otherwise the value was escaped and written to the patch.
	Rejected bool `json:"rejected"`
}

// PatchDetails describes a generated patch file.
type PatchDetails struct {
	FileName string `json:"file_name"`
	Mode     string `json:"mode"`
	Ticket   string `json:"ticket,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	securityLogger := logger.Named("security_audit")
	return &SecurityAuditor{logger: securityLogger}
}

func (a *SecurityAuditor) newEvent(ctx context.Context, eventType SecurityEventType, queryID, clientIP, severity string, details any) SecurityEvent {
	return SecurityEvent{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		QueryID:   queryID,
		RequestID: middleware.RequestIDFromContext(ctx),
		ClientIP:  clientIP,
		Details:   details,
		Severity:  severity,
	}
}

// LogInjectionAttempt records a detected SQL injection pattern with full context.
// Rejected attempts are logged at ERROR level with "critical" severity; values
// that were only escaped are logged at WARN level.
//
// Example usage:
//
//	auditor.LogInjectionAttempt(ctx, "update-person",
//	    audit.SQLInjectionDetails{
//	        ParamName:   "new_name",
//	        ParamValue:  "'; DROP TABLE person--",
//	        Fingerprint: "s&1c",
//	        QueryName:   "Update a person",
//	        Rejected:    true,
//	    },
//	    r.RemoteAddr,
//	)
func (a *SecurityAuditor) LogInjectionAttempt(
	ctx context.Context,
	queryID string,
	details SQLInjectionDetails,
	clientIP string,
) {
	details.ParamValue = logging.TruncateString(details.ParamValue, maxAuditedValueLength)

	severity := "warning"
	if details.Rejected {
		severity = "critical"
	}
	event := a.newEvent(ctx, EventSQLInjectionAttempt, queryID, clientIP, severity, details)

	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("query_id", queryID),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.Bool("rejected", details.Rejected),
		zap.String("client_ip", clientIP),
		zap.String("request_id", event.RequestID),
		zap.String("severity", severity),
	}
	if details.Rejected {
		a.logger.Error("SQL injection attempt detected", fields...)
		return
	}
	a.logger.Warn("SQL injection pattern escaped", fields...)
}

// LogParameterValidation records a rejected generation request.
// This is logged at WARN level as these are typically user errors, not attacks.
func (a *SecurityAuditor) LogParameterValidation(
	ctx context.Context,
	queryID string,
	errorMessage string,
	clientIP string,
) {
	event := a.newEvent(ctx, EventParameterValidation, queryID, clientIP, "warning", map[string]string{
		"error": errorMessage,
	})

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Parameter validation failed",
		zap.String("event_json", string(eventJSON)),
		zap.String("query_id", queryID),
		zap.String("error", errorMessage),
		zap.String("client_ip", clientIP),
		zap.String("request_id", event.RequestID),
		zap.String("severity", "warning"),
	)
}

// LogPatchGenerated records a written patch file for the audit trail.
func (a *SecurityAuditor) LogPatchGenerated(
	ctx context.Context,
	queryID string,
	details PatchDetails,
	clientIP string,
) {
	event := a.newEvent(ctx, EventPatchGenerated, queryID, clientIP, "info", details)

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Patch generated",
		zap.String("event_json", string(eventJSON)),
		zap.String("query_id", queryID),
		zap.String("file", details.FileName),
		zap.String("mode", details.Mode),
		zap.String("client_ip", clientIP),
		zap.String("request_id", event.RequestID),
		zap.String("severity", "info"),
	)
}
