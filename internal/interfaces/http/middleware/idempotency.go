package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stylize.backend/pkg/logger"
	"stylize.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration bounds how long a key stays locked while the original
	// request is still being processed (payment verification can take
	// the full confirmation wait).
	LockDuration = 90 * time.Second
	// RetentionDuration is how long a finished response is replayable
	RetentionDuration = 24 * time.Hour

	processingMarker = "processing"
)

var (
	redisGet   = redis.Get
	redisSet   = redis.Set
	redisSetNX = redis.SetNX
	redisDel   = redis.Del
)

// storedResponse is the replayable outcome of a completed request
type storedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware makes requests carrying an Idempotency-Key header
// replay-safe: the first request runs and its response is cached; while it
// runs, duplicates get 409; after it finishes, duplicates get the cached
// response. Requests without the header pass through untouched.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ownerID := c.GetString(OwnerIDKey)
		storageKey := fmt.Sprintf("idempotency:%s:%s", ownerID, key)
		ctx := c.Request.Context()

		acquired, err := redisSetNX(ctx, storageKey, processingMarker, LockDuration)
		if err != nil {
			// Redis being down must not block payments.
			logger.Warn(ctx, "idempotency store unavailable, passing through", zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			val, err := redisGet(ctx, storageKey)
			if err != nil || val == processingMarker {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"code":    http.StatusConflict,
					"message": "a request with this idempotency key is already in progress",
				})
				return
			}
			var stored storedResponse
			if err := json.Unmarshal([]byte(val), &stored); err != nil {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"code":    http.StatusConflict,
					"message": "a request with this idempotency key was already processed",
				})
				return
			}
			c.Header("X-Idempotent-Replay", "true")
			c.Data(stored.Status, "application/json", []byte(stored.Body))
			c.Abort()
			return
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			// Server faults are retryable with the same key.
			if err := redisDel(ctx, storageKey); err != nil {
				logger.Warn(ctx, "failed to release idempotency lock", zap.Error(err))
			}
			return
		}

		payload, err := json.Marshal(storedResponse{Status: status, Body: writer.body.String()})
		if err == nil {
			err = redisSet(ctx, storageKey, string(payload), RetentionDuration)
		}
		if err != nil {
			logger.Warn(ctx, "failed to store idempotent response", zap.Error(err))
		}
	}
}
