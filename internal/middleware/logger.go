package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// sensitiveFields contains patterns for body fields that should be redacted
var sensitiveFields = []string{
	"password",
	"token",
	"secret",
	"otp",
	"credential",
	"cookie",
	"session_id",
}

// sensitiveQueryParams are query parameters whose value is never logged
var sensitiveQueryParams = []string{
	"otp_code",
	"otp",
	"password",
}

// sensitiveHeaderPatterns contains regex patterns for sensitive headers
var sensitiveHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)authorization`),
	regexp.MustCompile(`(?i)api[-_]?key`),
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)password`),
	regexp.MustCompile(`(?i)cookie`),
}

const (
	redacted     = "[REDACTED]"
	maxBodyBytes = 1000
)

// responseWriter captures the response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// LoggerConfig holds configuration for the logger middleware
type LoggerConfig struct {
	// Logger receives the entries; the standard logger when nil
	Logger *logrus.Logger

	// SkipPaths are not logged, e.g. health probes
	SkipPaths []string

	// Bodies includes redacted request and response bodies at debug level
	Bodies bool
}

// RequestResponseLogger logs every API request with its status and latency
func RequestResponseLogger(config LoggerConfig) gin.HandlerFunc {
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	base := logger.WithField("type", "middleware/logger")

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		startTime := time.Now()

		var requestBody []byte
		if config.Bodies && c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		var capture *responseWriter
		if config.Bodies {
			capture = &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
			c.Writer = capture
		}

		c.Next()

		status := c.Writer.Status()
		entry := base.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(startTime).String(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		})
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		if q := redactQuery(c.Request.URL.Query()); len(q) > 0 {
			entry = entry.WithField("query", q)
		}
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.String())
		}

		if config.Bodies && logger.IsLevelEnabled(logrus.DebugLevel) {
			entry.WithFields(logrus.Fields{
				"headers":       redactHeaders(c.Request.Header),
				"request_body":  parseAndRedactBody(requestBody),
				"response_body": parseAndRedactBody(capture.body.Bytes()),
			}).Debug("request bodies")
		}

		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// redactQuery flattens the query string and hides passcodes
func redactQuery(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, vals := range values {
		if isSensitiveQueryParam(key) {
			out[key] = redacted
			continue
		}
		out[key] = strings.Join(vals, ",")
	}
	return out
}

func isSensitiveQueryParam(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitiveQueryParams {
		if lower == p {
			return true
		}
	}
	return false
}

// redactHeaders redacts sensitive headers
func redactHeaders(headers map[string][]string) map[string]string {
	out := make(map[string]string)
	for key, values := range headers {
		if isSensitiveHeader(key) {
			out[key] = redacted
		} else {
			out[key] = strings.Join(values, ", ")
		}
	}
	return out
}

// isSensitiveHeader checks if a header name is sensitive
func isSensitiveHeader(headerName string) bool {
	for _, pattern := range sensitiveHeaderPatterns {
		if pattern.MatchString(headerName) {
			return true
		}
	}
	return false
}

// parseAndRedactBody parses a JSON body and redacts sensitive fields
func parseAndRedactBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}

	var jsonBody interface{}
	if err := json.Unmarshal(body, &jsonBody); err != nil {
		bodyStr := string(body)
		if len(bodyStr) > maxBodyBytes {
			bodyStr = bodyStr[:maxBodyBytes] + "... (truncated)"
		}
		return bodyStr
	}

	redactSensitiveFields(jsonBody)
	return jsonBody
}

// redactSensitiveFields recursively redacts sensitive fields in JSON data
func redactSensitiveFields(data interface{}) {
	switch v := data.(type) {
	case map[string]interface{}:
		for key, value := range v {
			if isSensitiveField(key) {
				v[key] = redacted
			} else {
				redactSensitiveFields(value)
			}
		}
	case []interface{}:
		for _, item := range v {
			redactSensitiveFields(item)
		}
	}
}

// isSensitiveField checks if a field name is sensitive. requiresOtp is a flag, not a secret.
func isSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)
	if strings.HasPrefix(lowerField, "requires") {
		return false
	}
	for _, sensitive := range sensitiveFields {
		if strings.Contains(lowerField, sensitive) {
			return true
		}
	}
	return false
}
