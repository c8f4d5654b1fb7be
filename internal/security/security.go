package security

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
)

// Config holds request hardening limits
type Config struct {
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultConfig returns secure defaults
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   64 << 10,
		RequestTimeout: 30 * time.Second,
	}
}

var (
	scriptPattern  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	spacePattern   = regexp.MustCompile(`[ \t]+`)
)

// SanitizeText strips markup from free text entered by clinicians and
// trims it. Line breaks are kept for multi-line notes.
func SanitizeText(input string) string {
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = spacePattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateText sanitizes input and checks it against maxRunes.
func ValidateText(field, input string, maxRunes int) (string, error) {
	clean := SanitizeText(input)
	if !utf8.ValidString(clean) {
		return "", fmt.Errorf("%s contains invalid UTF-8", field)
	}
	if n := utf8.RuneCountInString(clean); n > maxRunes {
		return "", fmt.Errorf("%s is too long (%d > %d characters)", field, n, maxRunes)
	}
	return clean, nil
}

// ValidateContentType requires a JSON body on requests that carry one.
func ValidateContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength == 0 || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "application/json" {
			builder := errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("Content-Type must be application/json")
			apperrors.Respond(c, apperrors.NewAppError(builder, apperrors.CategoryValidation, http.StatusUnsupportedMediaType))
			return
		}

		c.Next()
	}
}

// BodyLimit caps request bodies at limit bytes.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			apperrors.Respond(c, apperrors.NewValidationError("Request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// RequestTimeout bounds the request context.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Timeout", strconv.Itoa(int(timeout.Seconds())))

		c.Next()
	}
}
