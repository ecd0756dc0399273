package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stash-go/internal/auth"
	"stash-go/internal/stash"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required,max=1024"`
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "username and password are required"})
		return
	}

	user, err := s.service.Register(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "username and password are required"})
		return
	}

	username := strings.TrimSpace(req.Username)
	if ok, retry := s.limiter.allow(username); !ok {
		s.metrics.loginFailures.WithLabelValues("rate_limited").Inc()
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many login attempts, try again later"})
		return
	}

	user, err := s.service.Authenticate(username, req.Password)
	if err != nil {
		if errors.Is(err, stash.ErrInvalidCredentials) {
			s.metrics.loginFailures.WithLabelValues("invalid_credentials").Inc()
		}
		respondError(c, err)
		return
	}

	token, session, err := s.tokens.Issue(user)
	if err != nil {
		respondError(c, err)
		return
	}

	s.setSessionCookie(c, token, int(s.tokens.TTL().Seconds()))
	requestLogger(c).Info("login", "user_id", user.ID)
	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      newUserResponse(user),
	})
}

// logout revokes the presented session, if any, and clears the cookie.
func (s *Server) logout(c *gin.Context) {
	if token, ok := s.sessionToken(c); ok {
		if session, err := s.tokens.Verify(token); err == nil {
			s.tokens.Revoke(session)
			requestLogger(c).Info("logout", "user_id", session.UserID)
		}
	}
	s.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (s *Server) me(c *gin.Context) {
	session := c.MustGet(contextSessionKey).(*auth.Session)
	c.JSON(http.StatusOK, gin.H{
		"user":       newUserResponse(currentUser(c)),
		"expires_at": session.ExpiresAt,
	})
}

func (s *Server) setSessionCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.cfg.SecureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
