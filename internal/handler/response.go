package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/auth-service/internal/errlog"
    "github.com/iliyamo/auth-service/internal/service"
)

// TokenCookie is the cookie that carries the identity token.
const TokenCookie = "jwt"

const (
    statusSuccess = "success"
    statusFail    = "fail"
    statusError   = "error"
)

// envelope is the body of every JSON response.
type envelope struct {
    Status  string `json:"status"`
    Token   string `json:"token,omitempty"`
    Data    any    `json:"data,omitempty"`
    Message string `json:"message,omitempty"`
}

// setTokenCookie writes the jwt cookie.  It is always httpOnly and is
// marked Secure when the request arrived over HTTPS (directly or through a
// proxy setting X-Forwarded-Proto).
func setTokenCookie(c echo.Context, value string, expires time.Time) {
    c.SetCookie(&http.Cookie{
        Name:     TokenCookie,
        Value:    value,
        Path:     "/",
        Expires:  expires,
        HttpOnly: true,
        Secure:   c.Scheme() == "https",
        SameSite: http.SameSiteLaxMode,
    })
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
    switch {
    case errors.Is(err, service.ErrValidation),
        errors.Is(err, service.ErrInvalidCredentials),
        errors.Is(err, service.ErrUserNotFound),
        errors.Is(err, service.ErrInvalidOrExpiredToken),
        errors.Is(err, service.ErrDispatchFailure):
        return http.StatusBadRequest
    case errors.Is(err, service.ErrUnauthenticated),
        errors.Is(err, service.ErrStalePasswordToken):
        return http.StatusUnauthorized
    }
    var he *echo.HTTPError
    if errors.As(err, &he) {
        return he.Code
    }
    return 0
}

// writeError renders err as a failure envelope.  Unexpected errors are
// logged and reported with a generic message.
func writeError(c echo.Context, log zerolog.Logger, err error) error {
    code := statusFor(err)
    switch {
    case errors.Is(err, service.ErrDispatchFailure):
        log.Warn().Err(err).Msg("mail dispatch failed")
        // transport detail stays in the log
        return c.JSON(code, envelope{Status: statusFail, Message: service.ErrDispatchFailure.Error()})
    case code == 0:
        errlog.Log(log, "unexpected error", err)
        return c.JSON(http.StatusInternalServerError, envelope{Status: statusError, Message: "something went very wrong"})
    case code >= 500:
        return c.JSON(code, envelope{Status: statusError, Message: http.StatusText(code)})
    }
    msg := err.Error()
    var he *echo.HTTPError
    if errors.As(err, &he) {
        if m, ok := he.Message.(string); ok {
            msg = m
        } else {
            msg = http.StatusText(code)
        }
    }
    return c.JSON(code, envelope{Status: statusFail, Message: msg})
}

// ErrorHandler replaces echo's default so that router-level failures
// (unknown routes, oversized bodies, panics) use the same envelope.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
    return func(err error, c echo.Context) {
        if c.Response().Committed {
            return
        }
        var he *echo.HTTPError
        if errors.As(err, &he) && he.Code == http.StatusNotFound {
            err = echo.NewHTTPError(http.StatusNotFound, "can't find "+c.Request().URL.Path+" on this server")
        }
        if werr := writeError(c, log, err); werr != nil {
            log.Error().Err(werr).Msg("write error response")
        }
    }
}
