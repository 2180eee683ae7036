package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/auth-service/internal/handler"
    "github.com/iliyamo/auth-service/internal/model"
)

// Authenticator resolves identity tokens to users.  *service.AuthService
// satisfies it.
type Authenticator interface {
    Protect(ctx context.Context, token string) (*model.User, error)
    CurrentUser(ctx context.Context, token string) *model.User
}

// Protect rejects requests that do not carry a valid identity token for a
// live user whose password has not changed since the token was issued.
// On success the user is stored under handler.ContextUserKey.  A user
// already attached by OptionalAuth passed the same checks and is reused.
func Protect(a Authenticator) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if CurrentUser(c) != nil {
                return next(c)
            }
            u, err := a.Protect(c.Request().Context(), tokenFrom(c))
            if err != nil {
                // rendered by handler.ErrorHandler
                return err
            }
            c.Set(handler.ContextUserKey, u)
            return next(c)
        }
    }
}

// OptionalAuth attaches the user when a valid token is present and lets
// every request through regardless.
func OptionalAuth(a Authenticator) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if tok := tokenFrom(c); tok != "" {
                if u := a.CurrentUser(c.Request().Context(), tok); u != nil {
                    c.Set(handler.ContextUserKey, u)
                }
            }
            return next(c)
        }
    }
}

// tokenFrom reads a Bearer token, falling back to the jwt cookie.
func tokenFrom(c echo.Context) string {
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(handler.TokenCookie); err == nil {
        return ck.Value
    }
    return ""
}
