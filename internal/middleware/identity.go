package middleware

// identity.go reads the authenticated user back out of the echo context.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/auth-service/internal/handler"
    "github.com/iliyamo/auth-service/internal/model"
)

// CurrentUser returns the user attached by Protect or OptionalAuth, or nil.
func CurrentUser(c echo.Context) *model.User {
    u, _ := c.Get(handler.ContextUserKey).(*model.User)
    return u
}

// currentUserID is the rate-limit key part for the caller; "anon" when no
// user is attached.
func currentUserID(c echo.Context) string {
    if u := CurrentUser(c); u != nil {
        return strconv.FormatUint(u.ID, 10)
    }
    return "anon"
}
