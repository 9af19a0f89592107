package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/earshot-ai/earshot/pkg/identity"
)

const requestIDHeader = "X-Request-ID"

// Keys under which middleware stores per-request values on the gin
// context.
const (
	ctxRequestID = "request_id"
	ctxUser      = "user"
)

// requestID assigns every request an id, honoring one supplied by the
// caller, and reflects it in the response headers.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one line per request. The scrape endpoint is too
// chatty to log.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", c.GetString(ctxRequestID),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.log.Error("request", args...)
		case status >= http.StatusBadRequest:
			s.log.Warn("request", args...)
		default:
			s.log.Info("request", args...)
		}
	}
}

// httpMetrics records request counts and latency against the matched
// route template, keeping label cardinality bounded.
func (s *Server) httpMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		s.metrics.RecordHTTPRequest(c.Request.Method, path, status, time.Since(start).Seconds())
	}
}

// recovery turns handler panics into 500 responses and keeps the
// diagnostics on the structured logger.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic recovered",
					"error", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"request_id", c.GetString(ctxRequestID),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				respondError(c, http.StatusInternalServerError, "internal error")
			}
		}()
		c.Next()
	}
}

// authenticate verifies the bearer token and loads the caller's user
// row, creating it on first contact.
func (s *Server) authenticate(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing bearer token")
		return
	}

	ident, err := s.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		s.fail(c, err)
		return
	}

	user, created, err := s.users.GetOrCreate(c.Request.Context(), ident)
	if err != nil {
		s.fail(c, err)
		return
	}
	if created {
		s.log.Info("user created", "user", user.ID)
	}

	c.Set(ctxUser, user)
	c.Next()
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// currentUser returns the user stored by authenticate.
func currentUser(c *gin.Context) identity.User {
	v, _ := c.Get(ctxUser)
	user, _ := v.(identity.User)
	return user
}
