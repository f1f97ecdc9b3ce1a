package observability

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

// RequestLogger はリクエストごとにrequest_id付きloggerをctxへ入れ、完了時に1行出す。
// 5xxはError、4xxはWarn、それ以外はInfo。
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	if base == nil {
		base = noopLogger
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(HeaderRequestID)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, requestID)

			logger := base.With(
				zap.String("request_id", requestID),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
			)
			c.SetRequest(req.WithContext(WithLogger(req.Context(), logger)))

			start := time.Now()
			err := next(c)
			if err != nil {
				//echoのエラーハンドラに書かせてからステータスを拾う
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("bytes", c.Response().Size),
			}
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request completed", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("request completed", fields...)
			default:
				logger.Info("request completed", fields...)
			}
			return nil
		}
	}
}
