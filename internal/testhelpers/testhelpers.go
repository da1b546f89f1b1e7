// Package testhelpers provides reusable testing utilities: HTTP request
// contexts, an in-memory test database, and alert builders.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/database"
)

// SetupTestDB opens an in-memory SQLite database with all models migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&database.Alert{},
		&database.Incident{},
		&database.IncidentMerge{},
		&database.AuditLog{},
		&database.TriageSettings{},
		&database.NotificationSettings{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// HTTPTestContext holds components for HTTP handler testing.
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context.
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  httptest.NewRequest(method, path, body),
	}
}

// WithHeader adds a header to the request.
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets a JSON body on the request.
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithBearerToken adds an Authorization Bearer header.
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler against the request.
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code.
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if the response body contains a substring.
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	if !strings.Contains(ctx.Recorder.Body.String(), substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, ctx.Recorder.Body.String())
	}
	return ctx
}

// DecodeJSON decodes the response body as JSON.
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// AlertBuilder builds domain alerts for correlation and scoring tests.
type AlertBuilder struct {
	alert alerts.Alert
}

// NewAlertBuilder creates a builder with sensible defaults.
func NewAlertBuilder(id string) *AlertBuilder {
	return &AlertBuilder{
		alert: alerts.Alert{
			AlertID:   id,
			Source:    "Test",
			Category:  "Suspicious Activity",
			Severity:  alerts.SeverityMedium,
			Title:     "Test alert " + id,
			Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		},
	}
}

// At sets the timestamp.
func (b *AlertBuilder) At(t time.Time) *AlertBuilder {
	b.alert.Timestamp = t.UTC()
	return b
}

// WithSeverity sets the severity.
func (b *AlertBuilder) WithSeverity(s alerts.Severity) *AlertBuilder {
	b.alert.Severity = s
	return b
}

// WithCategory sets the category.
func (b *AlertBuilder) WithCategory(c string) *AlertBuilder {
	b.alert.Category = c
	return b
}

// WithUser sets the user entity.
func (b *AlertBuilder) WithUser(u string) *AlertBuilder {
	b.alert.EntityUser = u
	return b
}

// WithIP sets the IP entity.
func (b *AlertBuilder) WithIP(ip string) *AlertBuilder {
	b.alert.EntityIP = ip
	return b
}

// WithDevice sets the device entity.
func (b *AlertBuilder) WithDevice(d string) *AlertBuilder {
	b.alert.EntityDevice = d
	return b
}

// WithLocation sets the location entity.
func (b *AlertBuilder) WithLocation(l string) *AlertBuilder {
	b.alert.EntityLocation = l
	return b
}

// Build returns the constructed alert.
func (b *AlertBuilder) Build() alerts.Alert {
	return b.alert
}
