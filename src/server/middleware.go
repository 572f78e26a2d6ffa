package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	app "wadserv/src/app"
)

const identityKey = "identity"

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func recoverJSON(logger *zap.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error("panic in handler", zap.Any("recovered", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
}

// writeError reports err as a {message} body. Profile media errors carry
// their own status and client message; anything else is a generic 500.
func (a *AppHandler) writeError(c *gin.Context, err error) {
	var mediaErr *app.Error
	if errors.As(err, &mediaErr) {
		status := mediaErr.Kind.Status()
		if status >= http.StatusInternalServerError {
			a.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		} else {
			a.logger.Debug("request rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
		}
		c.JSON(status, gin.H{"message": mediaErr.Message})
		return
	}
	a.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}
