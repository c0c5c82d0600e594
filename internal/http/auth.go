package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"learnpath/internal/service"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth/refresh"
	userIDKey         = "userID"
)

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}
	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setRefreshCookie(c, sess)
	c.JSON(http.StatusOK, gin.H{
		"accessToken": sess.Access.Value,
		"user":        userToResponse(sess.User),
	})
}

func (h *Handler) refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ErrInvalidRefreshToken.Message})
		return
	}
	sess, err := h.auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.clearRefreshCookie(c)
		h.respondError(c, err)
		return
	}
	h.setRefreshCookie(c, sess)
	c.JSON(http.StatusOK, gin.H{"accessToken": sess.Access.Value})
}

// logout always succeeds. A valid bearer token additionally revokes every
// refresh session of its user.
func (h *Handler) logout(c *gin.Context) {
	h.clearRefreshCookie(c)
	if token, ok := bearerToken(c); ok {
		if userID, err := h.auth.Authenticate(token); err == nil {
			if err := h.auth.RevokeSessions(c.Request.Context(), userID); err != nil {
				h.logger.WithError(err).WithField("user_id", userID).Error("revoke sessions on logout")
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) profile(c *gin.Context) {
	user, err := h.auth.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), req.fields())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), currentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

// requireAuth rejects requests without a valid access token. Every failure
// gets the same response; the reason is only logged.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			h.logger.WithField("path", c.Request.URL.Path).Debug("missing bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		userID, err := h.auth.Authenticate(token)
		if err != nil {
			h.logger.WithError(err).WithField("path", c.Request.URL.Path).Debug("access token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (h *Handler) setRefreshCookie(c *gin.Context, sess *service.Session) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookieName,
		Value:    sess.Refresh.Value,
		Path:     refreshCookiePath,
		Expires:  sess.Refresh.ExpiresAt,
		MaxAge:   int(time.Until(sess.Refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
