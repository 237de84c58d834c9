package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
}

// NewAPIResponse builds a success envelope. Success follows the status code.
func NewAPIResponse(statusCode int, data any, message string) APIResponse {
	return APIResponse{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Success:    statusCode < router.StatusBadRequest,
	}
}

func sendResponse(c router.Context, statusCode int, data any, message string) error {
	return c.JSON(statusCode, NewAPIResponse(statusCode, data, message))
}

// CookieConfig holds the attributes shared by the session cookies.
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
	Path     string
}

// DefaultCookieConfig returns HttpOnly, Secure, SameSite=Lax cookies scoped
// to the whole site.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Secure:   true,
		SameSite: router.CookieSameSiteLaxMode,
		Path:     "/",
	}
}

func (cfg CookieConfig) cookie(name, value string, expires time.Time) *router.Cookie {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return &router.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   cfg.Domain,
		Expires:  expires,
		Secure:   cfg.Secure,
		HTTPOnly: true,
		SameSite: cfg.SameSite,
	}
}

// SetSessionCookies writes both session cookies.
func SetSessionCookies(c router.Context, cfg CookieConfig, pair *TokenPair) {
	if pair == nil {
		return
	}
	c.Cookie(cfg.cookie(AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt))
	c.Cookie(cfg.cookie(RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

// ClearSessionCookies expires both session cookies using the same
// attributes they were set with.
func ClearSessionCookies(c router.Context, cfg CookieConfig) {
	expired := time.Now().Add(-24 * time.Hour)
	c.Cookie(cfg.cookie(AccessTokenCookie, "", expired))
	c.Cookie(cfg.cookie(RefreshTokenCookie, "", expired))
}

// ErrorHandler renders any error as the JSON envelope. Rich errors keep
// their status code and message; anything else becomes a generic 500.
func ErrorHandler(logger Logger) router.ErrorHandler {
	logger = loggerOrDefault(logger)

	return func(c router.Context, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, defaultInternalErrorMessage).
				WithCode(goerrors.CodeInternal).
				WithTextCode(TextCodeInternal)
		}

		status := statusFromError(richErr)
		message := richErr.Message
		if status >= router.StatusInternalServerError {
			logger.Error("request failed",
				"path", c.Path(),
				"method", c.Method(),
				"error", err,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
			if richErr.Category == goerrors.CategoryInternal {
				message = defaultInternalErrorMessage
			}
		} else {
			logger.Debug("request rejected",
				"path", c.Path(),
				"text_code", richErr.TextCode,
				"message", richErr.Message,
			)
		}

		return c.JSON(status, APIResponse{
			StatusCode: status,
			Data:       nil,
			Message:    message,
			Success:    false,
			Errors:     ValidationDetails(richErr),
		})
	}
}

// ErrorMiddleware renders errors returned further down the chain with
// handler. A nil handler falls back to ErrorHandler(logger).
func ErrorMiddleware(logger Logger, handler ...router.ErrorHandler) router.MiddlewareFunc {
	render := ErrorHandler(logger)
	if len(handler) > 0 && handler[0] != nil {
		render = handler[0]
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if err := c.Next(); err != nil {
				return render(c, err)
			}
			return nil
		}
	}
}

func statusFromError(richErr *goerrors.Error) int {
	if richErr.Code >= router.StatusBadRequest && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return router.StatusForbidden
	case goerrors.CategoryNotFound:
		return router.StatusNotFound
	case goerrors.CategoryConflict:
		return router.StatusConflict
	case goerrors.CategoryRateLimit:
		return router.StatusTooManyRequests
	default:
		return router.StatusInternalServerError
	}
}
