package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-patch/pkg/middleware"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return logger, recorded
}

func decodeEvent(t *testing.T, entry observer.LoggedEntry) SecurityEvent {
	t.Helper()
	eventJSON, ok := entry.ContextMap()["event_json"].(string)
	require.True(t, ok, "event_json should be a string")

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(eventJSON), &event), "event_json should be valid JSON")
	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.False(t, event.Timestamp.IsZero())
	return event
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, _ := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	assert.NotNil(t, auditor)
	assert.NotNil(t, auditor.logger)
}

func TestLogInjectionAttempt(t *testing.T) {
	requestID := uuid.NewString()
	clientIP := "192.168.1.100"

	tests := []struct {
		name          string
		ctx           context.Context
		rejected      bool
		wantLevel     zapcore.Level
		wantMessage   string
		wantSeverity  string
		wantRequestID string
	}{
		{
			name:          "rejected with request id",
			ctx:           middleware.WithRequestID(context.Background(), requestID),
			rejected:      true,
			wantLevel:     zapcore.ErrorLevel,
			wantMessage:   "SQL injection attempt detected",
			wantSeverity:  "critical",
			wantRequestID: requestID,
		},
		{
			name:         "escaped without request id",
			ctx:          context.Background(),
			rejected:     false,
			wantLevel:    zapcore.WarnLevel,
			wantMessage:  "SQL injection pattern escaped",
			wantSeverity: "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, recorded := setupTestLogger(t)
			auditor := NewSecurityAuditor(logger)

			auditor.LogInjectionAttempt(tt.ctx, "update-person", SQLInjectionDetails{
				ParamName:   "new_name",
				ParamValue:  "'; DROP TABLE person--",
				Fingerprint: "s&1c",
				QueryName:   "Update a person",
				Rejected:    tt.rejected,
			}, clientIP)

			logs := recorded.All()
			require.Len(t, logs, 1, "Expected exactly one log entry")

			entry := logs[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, tt.wantMessage, entry.Message)
			assert.Equal(t, "security_audit", entry.LoggerName)

			fields := entry.ContextMap()
			assert.Equal(t, "update-person", fields["query_id"])
			assert.Equal(t, "new_name", fields["param_name"])
			assert.Equal(t, "s&1c", fields["fingerprint"])
			assert.Equal(t, tt.rejected, fields["rejected"])
			assert.Equal(t, clientIP, fields["client_ip"])
			assert.Equal(t, tt.wantRequestID, fields["request_id"])
			assert.Equal(t, tt.wantSeverity, fields["severity"])

			event := decodeEvent(t, entry)
			assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
			assert.Equal(t, "update-person", event.QueryID)
			assert.Equal(t, tt.wantRequestID, event.RequestID)
			assert.Equal(t, clientIP, event.ClientIP)
			assert.Equal(t, tt.wantSeverity, event.Severity)

			detailsMap, ok := event.Details.(map[string]any)
			require.True(t, ok, "Details should be a map")
			assert.Equal(t, "new_name", detailsMap["param_name"])
			assert.Equal(t, "'; DROP TABLE person--", detailsMap["param_value"])
			assert.Equal(t, "Update a person", detailsMap["query_name"])
			assert.Equal(t, tt.rejected, detailsMap["rejected"])
		})
	}
}

func TestLogInjectionAttempt_TruncatesValue(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	long := "' OR 1=1 -- " + strings.Repeat("x", 500)
	auditor.LogInjectionAttempt(context.Background(), "q", SQLInjectionDetails{ParamName: "p", ParamValue: long}, "")

	event := decodeEvent(t, recorded.All()[0])
	detailsMap := event.Details.(map[string]any)
	value := detailsMap["param_value"].(string)
	assert.Len(t, value, maxAuditedValueLength+len("..."))
	assert.True(t, strings.HasSuffix(value, "..."))
}

func TestLogParameterValidation(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	errorMsg := "missing required parameters: new_name"
	auditor.LogParameterValidation(context.Background(), "update-person", errorMsg, "10.0.0.50")

	logs := recorded.All()
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "Parameter validation failed", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "update-person", fields["query_id"])
	assert.Equal(t, errorMsg, fields["error"])
	assert.Equal(t, "warning", fields["severity"])

	event := decodeEvent(t, entry)
	assert.Equal(t, EventParameterValidation, event.EventType)
	detailsMap, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, errorMsg, detailsMap["error"])
}

func TestLogPatchGenerated(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogPatchGenerated(context.Background(), "close-contracts", PatchDetails{
		FileName: "close-contracts_unitaire_20251130140509.sql",
		Mode:     "unitaire",
		Ticket:   "OPS-7",
	}, "127.0.0.1:51234")

	logs := recorded.All()
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "Patch generated", entry.Message)
	assert.Equal(t, "close-contracts_unitaire_20251130140509.sql", entry.ContextMap()["file"])

	event := decodeEvent(t, entry)
	assert.Equal(t, EventPatchGenerated, event.EventType)
	assert.Equal(t, "info", event.Severity)
	detailsMap, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OPS-7", detailsMap["ticket"])
	assert.Equal(t, "unitaire", detailsMap["mode"])
}

func TestMultipleInjectionAttempts(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	attempts := []struct {
		param    string
		value    string
		clientIP string
	}{
		{"new_name", "'; DROP TABLE person--", "192.168.1.1"},
		{"status", "' OR '1'='1", "192.168.1.2"},
		{"person_id", "1 UNION SELECT * FROM passwords", "192.168.1.3"},
	}

	for _, a := range attempts {
		auditor.LogInjectionAttempt(context.Background(), "update-person", SQLInjectionDetails{
			ParamName:  a.param,
			ParamValue: a.value,
			Rejected:   true,
		}, a.clientIP)
	}

	logs := recorded.All()
	require.Len(t, logs, 3, "Should have logged all three attempts")

	for i, entry := range logs {
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, attempts[i].clientIP, fields["client_ip"])
		assert.Equal(t, attempts[i].param, fields["param_name"])
	}
}
