package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
)

// Recovery turns a handler panic into a 500 carrying the request id.
// A panic caused by the client hanging up is logged without a response,
// and http.ErrAbortHandler is passed on to the server untouched.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			ctx := c.Request.Context()
			attrs := []any{
				"error", rec,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			}
			if id := c.Param("id"); id != "" {
				attrs = append(attrs, "session_id", id)
			}

			if err, ok := rec.(error); ok && brokenConnection(err) {
				logger.Warn(ctx, "client connection lost", attrs...)
				c.Abort()
				return
			}

			logger.Error(ctx, "panic recovered", append(attrs, "stack", string(debug.Stack()))...)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}

// brokenConnection reports whether err means the peer went away mid-response
func brokenConnection(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr, &sysErr) {
		return errors.Is(sysErr.Err, syscall.EPIPE) || errors.Is(sysErr.Err, syscall.ECONNRESET)
	}
	return errors.Is(opErr.Err, syscall.EPIPE) || errors.Is(opErr.Err, syscall.ECONNRESET)
}
