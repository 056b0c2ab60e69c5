package apperrors

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// envelope is the error body every endpoint writes:
//
//	{"error": {"code": ..., "message": ..., "details": {...}}}
type envelope struct {
	Error envelopeBody `json:"error"`
}

type envelopeBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

var environment = "development"

// SetEnvironment switches message gating. In production internal error text
// is replaced with the generic UserMessage for the code.
func SetEnvironment(env string) {
	environment = env
}

func production() bool {
	return environment == "production"
}

// Respond writes err as the shared error envelope with its mapped status.
// Errors that are not AppErrors become a 500 INTERNAL_SERVER_ERROR.
func Respond(ctx *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		message := "An internal server error occurred"
		if !production() {
			message = fmt.Sprintf("Internal server error: %v", err)
		}
		log.Printf("Unhandled error on %s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, err)
		writeEnvelope(ctx, http.StatusInternalServerError, CodeInternalServerError, message, map[string]any{})
		return
	}

	message := appErr.Message
	if production() {
		message = UserMessage(appErr.Code, appErr.Message)
	}
	writeEnvelope(ctx, StatusCode(appErr.Code), appErr.Code, message, appErr.Details)
}

// AbortWithStatus writes a bare-status envelope (code HTTP_<status>) and
// aborts the handler chain. Used where no taxonomy code applies, such as
// authentication failures and unmatched routes.
func AbortWithStatus(ctx *gin.Context, status int, message string) {
	ctx.Abort()
	writeEnvelope(ctx, status, fmt.Sprintf("HTTP_%d", status), message, map[string]any{})
}

// RecoveryHandler converts a recovered panic into the standard 500 envelope.
// Wire it through gin.CustomRecovery.
func RecoveryHandler(ctx *gin.Context, recovered any) {
	message := "An internal server error occurred"
	if !production() {
		message = fmt.Sprintf("Internal server error: %v", recovered)
	}
	details := map[string]any{"environment": environment}
	if id := ctx.GetString(types.ContextRequestIDKey); id != "" {
		details["request_id"] = id
	}
	ctx.Abort()
	writeEnvelope(ctx, http.StatusInternalServerError, CodeInternalServerError, message, details)
}

func writeEnvelope(ctx *gin.Context, status int, code, message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	ctx.JSON(status, envelope{Error: envelopeBody{Code: code, Message: message, Details: details}})
}
