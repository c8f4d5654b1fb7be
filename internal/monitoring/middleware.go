package monitoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

// maxSubmitBody is well above a 68-answer JSON body.
const maxSubmitBody = 16 << 10

// RequestIDMiddleware reuses a well-formed incoming request id or assigns a
// new one, exposing it to handlers and the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		c.Set(apperrors.RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)
		if statusCode >= 400 {
			metrics.IncrementError()
		}

		// Route templates keep tokens out of the log.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		logger.RequestLogger(c.GetString(apperrors.RequestIDKey), c.Request.Method, path, c.ClientIP(), statusCode, duration)

		for _, err := range c.Errors {
			logger.Error("API Error",
				"request_id", c.GetString(apperrors.RequestIDKey),
				"path", path,
				"error", err.Err)
		}

		if duration > 5*time.Second {
			logger.SystemLogger("slow_request", fmt.Sprintf("%s %s took %s", c.Request.Method, path, duration.Round(time.Millisecond)))
		}
	}
}

// SecurityMonitoringMiddleware logs requests that look like probing.
func SecurityMonitoringMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		details := make(map[string]interface{})

		switch {
		case containsSQLInjectionPatterns(c.Request.URL.RawQuery):
			details["type"] = "potential_sql_injection"
			details["query"] = c.Request.URL.RawQuery
		case containsSuspiciousUserAgent(c.GetHeader("User-Agent")):
			details["type"] = "suspicious_user_agent"
		case c.Request.Method == "POST" && strings.HasSuffix(c.FullPath(), "/submit") && c.Request.ContentLength > maxSubmitBody:
			details["type"] = "large_request_body"
			details["size_bytes"] = c.Request.ContentLength
		}

		if len(details) > 0 {
			logger.SecurityLogger("suspicious_activity_detected", c.ClientIP(), c.GetHeader("User-Agent"), details)
		}

		c.Next()
	}
}

var sqlInjectionPatterns = []string{
	"union select",
	"union all",
	"select * from",
	"drop table",
	"delete from",
	"';--",
	"/*",
	"*/",
}

func containsSQLInjectionPatterns(query string) bool {
	query = strings.ToLower(query)
	for _, pattern := range sqlInjectionPatterns {
		if strings.Contains(query, pattern) {
			return true
		}
	}
	return false
}

var suspiciousAgents = []string{
	"sqlmap",
	"nmap",
	"masscan",
	"zmap",
	"dirbuster",
	"gobuster",
	"nikto",
	"acunetix",
	"nessus",
}

func containsSuspiciousUserAgent(userAgent string) bool {
	userAgent = strings.ToLower(userAgent)
	for _, agent := range suspiciousAgents {
		if strings.Contains(userAgent, agent) {
			return true
		}
	}
	return false
}
