package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// RequestID tags every request with an id for log correlation. An incoming
// X-Request-ID is reused so ids stay stable across proxies; otherwise a
// fresh UUID is generated. The id is echoed back on the response.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(types.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx.Set(types.ContextRequestIDKey, id)
		ctx.Writer.Header().Set(types.RequestIDHeader, id)
		ctx.Next()
	}
}
