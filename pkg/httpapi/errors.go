package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/earshot-ai/earshot/pkg/identity"
	"github.com/earshot-ai/earshot/pkg/isotime"
	"github.com/earshot-ai/earshot/pkg/rag"
	"github.com/earshot-ai/earshot/pkg/speech"
	"github.com/earshot-ai/earshot/pkg/voiceprint"
	"github.com/earshot-ai/earshot/pkg/wav"
)

// apiError is the uniform error body.
type apiError struct {
	Error string `json:"error"`
}

// respondError writes the error body and stops the handler chain.
func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, apiError{Error: msg})
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voiceprint.ErrAudio),
		errors.Is(err, wav.ErrFormat),
		errors.Is(err, isotime.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrUnverified):
		return http.StatusUnauthorized
	case errors.Is(err, voiceprint.ErrNotEnrolled):
		return http.StatusPreconditionFailed
	case errors.Is(err, voiceprint.ErrModel),
		errors.Is(err, speech.ErrModel),
		errors.Is(err, rag.ErrEmbedQuery),
		errors.Is(err, rag.ErrGenerate):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody maps err to a status and a client-safe message. Internal
// errors are not echoed back.
func errorBody(err error) (int, string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return status, "internal error"
	}
	return status, err.Error()
}

// fail writes err as an HTTP error response, logging server-side
// failures.
func (s *Server) fail(c *gin.Context, err error) {
	status, msg := errorBody(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"error", err,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(ctxRequestID),
		)
	}
	respondError(c, status, msg)
}
