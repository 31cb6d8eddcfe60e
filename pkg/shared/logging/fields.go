// Package logging provides a fluent builder for structured log fields so the
// harness logs the same field names everywhere.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// StandardFields is a fluent builder over a field map.
type StandardFields map[string]interface{}

// NewFields creates an empty field set.
func NewFields() StandardFields {
	return StandardFields{}
}

// Component records the emitting component.
func (f StandardFields) Component(component string) StandardFields {
	f["component"] = component
	return f
}

// Operation records the operation in progress.
func (f StandardFields) Operation(operation string) StandardFields {
	f["operation"] = operation
	return f
}

// Resource records a resource type and, when present, its name.
func (f StandardFields) Resource(resourceType, resourceName string) StandardFields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

// Duration records an elapsed duration in milliseconds.
func (f StandardFields) Duration(d time.Duration) StandardFields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

// Error records a non-nil error.
func (f StandardFields) Error(err error) StandardFields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

// UserID records a non-empty user id.
func (f StandardFields) UserID(userID string) StandardFields {
	if userID != "" {
		f["user_id"] = userID
	}
	return f
}

// RequestID records a request id.
func (f StandardFields) RequestID(requestID string) StandardFields {
	f["request_id"] = requestID
	return f
}

// TraceID records a trace id.
func (f StandardFields) TraceID(traceID string) StandardFields {
	f["trace_id"] = traceID
	return f
}

// StatusCode records an HTTP status code.
func (f StandardFields) StatusCode(code int) StandardFields {
	f["status_code"] = code
	return f
}

// Method records an HTTP method.
func (f StandardFields) Method(method string) StandardFields {
	f["method"] = method
	return f
}

// URL records a URL.
func (f StandardFields) URL(url string) StandardFields {
	f["url"] = url
	return f
}

// Count records a count.
func (f StandardFields) Count(count int) StandardFields {
	f["count"] = count
	return f
}

// Size records a byte size.
func (f StandardFields) Size(bytes int64) StandardFields {
	f["size_bytes"] = bytes
	return f
}

// Version records a version string.
func (f StandardFields) Version(version string) StandardFields {
	f["version"] = version
	return f
}

// Custom records an arbitrary key/value pair.
func (f StandardFields) Custom(key string, value interface{}) StandardFields {
	f[key] = value
	return f
}

// ToLogrus converts the field set for use with logrus.WithFields.
func (f StandardFields) ToLogrus() logrus.Fields {
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		fields[k] = v
	}
	return fields
}

// DatabaseFields builds the standard fields for a state-store operation.
func DatabaseFields(operation, table string) StandardFields {
	return NewFields().
		Component("database").
		Operation(operation).
		Resource("table", table)
}

// HTTPFields builds the standard fields for an outbound HTTP call.
func HTTPFields(method, url string, statusCode int) StandardFields {
	return NewFields().
		Component("http").
		Method(method).
		URL(url).
		StatusCode(statusCode)
}

// CanaryFields builds the standard fields for a canary-level event.
func CanaryFields(operation, canaryID string) StandardFields {
	return NewFields().
		Component("canary").
		Operation(operation).
		Resource("canary", canaryID)
}

// PreflightFields builds the standard fields for a preflight gate.
func PreflightFields(gate string) StandardFields {
	return NewFields().
		Component("preflight").
		Operation(gate)
}

// ArtifactFields builds the standard fields for an artifact write.
func ArtifactFields(operation, path string) StandardFields {
	return NewFields().
		Component("artifacts").
		Operation(operation).
		Resource("file", path)
}

// ConfigFields builds the standard fields for a config resolution, recording
// the provenance of the resolved value.
func ConfigFields(name, source string) StandardFields {
	return NewFields().
		Component("config").
		Operation("resolve").
		Resource("setting", name).
		Custom("source", source)
}

// PerformanceFields builds the standard fields for a timed operation.
func PerformanceFields(operation string, duration time.Duration, success bool) StandardFields {
	return NewFields().
		Component("performance").
		Operation(operation).
		Duration(duration).
		Custom("success", success)
}
