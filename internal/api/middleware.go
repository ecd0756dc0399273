package api

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stash-go/internal/stash"
)

const (
	contextUserKey    = "user"
	contextSessionKey = "session"
	contextLoggerKey  = "logger"

	requestIDHeader = "X-Request-ID"
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// requestID tags each request with an id, reusing a well-formed incoming one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(id) {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)
		c.Set(contextLoggerKey, s.logger.With("request_id", id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		requestLogger(c).Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start).Truncate(time.Microsecond),
		)
	}
}

// requestLogger returns the logger tagged with the request id.
func requestLogger(c *gin.Context) *slog.Logger {
	if l, ok := c.Get(contextLoggerKey); ok {
		if logger, ok := l.(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}

// sessionToken extracts the token from the Authorization header or the session cookie.
// A malformed Authorization header is reported instead of falling back to the cookie.
func (s *Server) sessionToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if cookie, err := c.Cookie(s.cfg.CookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// requireSession rejects requests without a valid session and stores the caller in the context.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessionToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		session, err := s.tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid or expired session"})
			return
		}

		user, err := s.service.LookupUser(session.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid or expired session"})
			return
		}

		c.Set(contextUserKey, user)
		c.Set(contextSessionKey, session)
		c.Set(contextLoggerKey, requestLogger(c).With("user_id", user.ID))
		c.Next()
	}
}

// currentUser returns the authenticated caller. Only valid behind requireSession.
func currentUser(c *gin.Context) *stash.User {
	return c.MustGet(contextUserKey).(*stash.User)
}
