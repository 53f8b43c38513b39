package api

import (
	"strings"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey = "request_id"
	requesterKey = "requester"
)

// Authenticator turns a bearer token into a requester.
type Authenticator interface {
	Parse(token string) (domain.Requester, error)
}

// RequestID makes sure every request carries an id for logs and responses.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// OptionalAuth attaches the requester when a bearer token is sent. A request
// without a token proceeds anonymously; a bad token is rejected.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		requester, err := auth.Parse(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(requesterKey, requester)
		c.Next()
	}
}

func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, domain.UnauthorizedError{Msg: "missing bearer token"})
			return
		}
		requester, err := auth.Parse(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(requesterKey, requester)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requesterFrom(c).IsAdmin() {
			abortWithError(c, domain.ForbiddenError{Msg: "admin role required"})
			return
		}
		c.Next()
	}
}

func requesterFrom(c *gin.Context) domain.Requester {
	if v, ok := c.Get(requesterKey); ok {
		if r, ok := v.(domain.Requester); ok {
			return r
		}
	}
	return domain.Requester{}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
