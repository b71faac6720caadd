package core

import (
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorAuthorizationFailed = "DEPLOYER_AUTHORIZATION_FAILED"
	ErrorTokenExchangeFailed = "DEPLOYER_TOKEN_EXCHANGE_FAILED"
	ErrorFileWriteFailed     = "DEPLOYER_FILE_WRITE_FAILED"
	ErrorDeployFailed        = "DEPLOYER_DEPLOY_FAILED"
	ErrorNotAuthorized       = "DEPLOYER_NOT_AUTHORIZED"
	ErrorRunAborted          = "DEPLOYER_RUN_ABORTED"
	ErrorRateLimited         = "DEPLOYER_RATE_LIMITED"
	ErrorBadInput            = "DEPLOYER_BAD_INPUT"
	ErrorInternal            = "DEPLOYER_INTERNAL_ERROR"
)

// MetadataRetryAfterMS carries the provider's retry hint on error envelopes.
const MetadataRetryAfterMS = "retry_after_ms"

// ErrAbortDeploy is returned by a pre-deploy hook to cancel the run.
var ErrAbortDeploy = errors.New("core: deploy aborted by hook")

func NewAuthorizationError(message string) *goerrors.Error {
	return newDeployerError(message, goerrors.CategoryAuthz, ErrorAuthorizationFailed)
}

func NewTokenExchangeError(source error) *goerrors.Error {
	return wrapDeployerError(source, goerrors.CategoryExternal, "core: token exchange failed", ErrorTokenExchangeFailed)
}

func NewFileWriteError(source error, filePath string) *goerrors.Error {
	err := wrapDeployerError(source, goerrors.CategoryOperation, "core: staging file write failed", ErrorFileWriteFailed)
	err.Code = http.StatusInternalServerError
	err.WithMetadata(map[string]any{"path": filePath})
	return err
}

// NewDeployError names the target site whose upload failed.
func NewDeployError(source error, targetSiteID string) *goerrors.Error {
	message := "core: deploy to target site " + strings.TrimSpace(targetSiteID) + " failed"
	err := wrapDeployerError(source, goerrors.CategoryExternal, message, ErrorDeployFailed)
	err.WithMetadata(map[string]any{"target_site_id": strings.TrimSpace(targetSiteID)})
	return err
}

func NewNotAuthorizedError() *goerrors.Error {
	return newDeployerError("core: deployer is not authorized", goerrors.CategoryAuth, ErrorNotAuthorized)
}

func NewRunAbortedError(source error) *goerrors.Error {
	return wrapDeployerError(source, goerrors.CategoryOperation, "core: deploy run aborted", ErrorRunAborted)
}

func IsAuthorizationError(err error) bool {
	return hasTextCode(err, ErrorAuthorizationFailed)
}

func IsTokenExchangeError(err error) bool {
	return hasTextCode(err, ErrorTokenExchangeFailed)
}

func IsFileWriteError(err error) bool {
	return hasTextCode(err, ErrorFileWriteFailed)
}

func IsDeployError(err error) bool {
	return hasTextCode(err, ErrorDeployFailed)
}

func IsNotAuthorized(err error) bool {
	return hasTextCode(err, ErrorNotAuthorized)
}

func IsRunAborted(err error) bool {
	return hasTextCode(err, ErrorRunAborted)
}

// RetryAfterHint returns the longest provider retry hint found on err or
// any error joined into it.
func RetryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var longest time.Duration
		found := false
		for _, inner := range joined.Unwrap() {
			if hint, ok := RetryAfterHint(inner); ok {
				found = true
				if hint > longest {
					longest = hint
				}
			}
		}
		return longest, found
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return 0, false
	}
	switch ms := richErr.Metadata[MetadataRetryAfterMS].(type) {
	case int64:
		return time.Duration(ms) * time.Millisecond, ms > 0
	case int:
		return time.Duration(ms) * time.Millisecond, ms > 0
	case float64:
		return time.Duration(ms) * time.Millisecond, ms > 0
	}
	return 0, false
}

// TextCode returns the envelope text code for err, or "" for plain errors.
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	// joined errors carry several envelopes
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if hasTextCode(inner, code) {
				return true
			}
		}
		return false
	}
	return TextCode(err) == code
}

// MapError returns err as a deployer envelope with an HTTP code and text code.
func MapError(err error) *goerrors.Error {
	return deployerErrorMapper(err)
}

func deployerErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureDeployerErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "oauth state"), strings.Contains(msg, "callback state"):
		return newDeployerError(err.Error(), goerrors.CategoryAuthz, ErrorAuthorizationFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newDeployerError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureDeployerErrorEnvelope(mapped)
}

func newDeployerError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureDeployerErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapDeployerError(source error, category goerrors.Category, message string, textCode string) *goerrors.Error {
	if source == nil {
		return newDeployerError(message, category, textCode)
	}
	return ensureDeployerErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

func ensureDeployerErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = deployerHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultDeployerTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultDeployerTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth:
		return ErrorNotAuthorized
	case goerrors.CategoryAuthz:
		return ErrorAuthorizationFailed
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	default:
		return ErrorInternal
	}
}

func deployerHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
