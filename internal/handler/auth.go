package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/auth-service/internal/model"
    "github.com/iliyamo/auth-service/internal/service"
)

// requestTimeout bounds the repository and mail work of one request.
const requestTimeout = 15 * time.Second

// ContextUserKey is where the protect middleware stores the *model.User.
const ContextUserKey = "user"

// AuthService is the part of service.AuthService the handlers call.
type AuthService interface {
    Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
    Login(ctx context.Context, username, password string) (*service.AuthResult, error)
    Logout() service.LogoutResult
    ForgotPassword(ctx context.Context, username, resetURLBase string) error
    ResetPassword(ctx context.Context, token, password, passwordConfirm string) (*service.AuthResult, error)
}

// AuthHandler bundles dependencies for the /users endpoints.
type AuthHandler struct {
    Auth      AuthService
    CookieTTL time.Duration // jwt cookie lifetime; zero means the token's own expiry
    Log       zerolog.Logger
}

func NewAuthHandler(a AuthService, cookieTTL time.Duration, log zerolog.Logger) *AuthHandler {
    return &AuthHandler{Auth: a, CookieTTL: cookieTTL, Log: log.With().Str("component", "http").Logger()}
}

// ----- DTOs -----

type signupReq struct {
    Name            string `json:"name" validate:"required"`
    Username        string `json:"username" validate:"required,email"`
    Password        string `json:"password" validate:"required,min=8"`
    PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type loginReq struct {
    Username string `json:"username" validate:"required,email"`
    Password string `json:"password" validate:"required,min=8"`
}

type forgotReq struct {
    Username string `json:"username" validate:"required,email"`
}

type resetReq struct {
    Password        string `json:"password" validate:"required,min=8"`
    PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type userData struct {
    User model.User `json:"user"`
}

// bind decodes and validates the request body into dst.
func bind(c echo.Context, dst any) error {
    if err := c.Bind(dst); err != nil {
        return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
    }
    return c.Validate(dst)
}

// baseURL is scheme://host of the current request.
func baseURL(c echo.Context) string {
    return c.Scheme() + "://" + c.Request().Host
}

// sendToken sets the cookie and writes the token envelope.  The cookie
// lives for CookieTTL (JWT_COOKIE_EXPIRES_DAYS) when configured.
func (h *AuthHandler) sendToken(c echo.Context, status int, res *service.AuthResult) error {
    expires := res.Expires
    if h.CookieTTL > 0 {
        expires = time.Now().Add(h.CookieTTL)
    }
    setTokenCookie(c, res.Token, expires)
    return c.JSON(status, envelope{Status: statusSuccess, Token: res.Token, Data: userData{User: res.User}})
}

// Signup: POST /users/signup
func (h *AuthHandler) Signup(c echo.Context) error {
    var req signupReq
    if err := bind(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    res, err := h.Auth.Signup(ctx, service.SignupInput{
        Name:            req.Name,
        Username:        req.Username,
        Password:        req.Password,
        PasswordConfirm: req.PasswordConfirm,
        BaseURL:         baseURL(c),
    })
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return h.sendToken(c, http.StatusCreated, res)
}

// Login: POST /users/login
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bind(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    res, err := h.Auth.Login(ctx, req.Username, req.Password)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return h.sendToken(c, http.StatusOK, res)
}

// Logout: GET /users/logout overwrites the cookie with a short-lived
// sentinel.
func (h *AuthHandler) Logout(c echo.Context) error {
    out := h.Auth.Logout()
    setTokenCookie(c, out.Value, out.Expires)
    return c.JSON(http.StatusOK, envelope{Status: statusSuccess})
}

// ForgotPassword: POST /users/forgotPassword
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
    var req forgotReq
    if err := bind(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    base := baseURL(c) + "/api/v1/users/resetPassword/"
    if err := h.Auth.ForgotPassword(ctx, req.Username, base); err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, envelope{Status: statusSuccess, Message: "Token sent to email!"})
}

// ResetPassword: PATCH /users/resetPassword/:token
func (h *AuthHandler) ResetPassword(c echo.Context) error {
    var req resetReq
    if err := bind(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    res, err := h.Auth.ResetPassword(ctx, c.Param("token"), req.Password, req.PasswordConfirm)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return h.sendToken(c, http.StatusOK, res)
}

// Me: GET /users/me returns the user attached by the protect middleware.
func (h *AuthHandler) Me(c echo.Context) error {
    u, ok := c.Get(ContextUserKey).(*model.User)
    if !ok || u == nil {
        return writeError(c, h.Log, service.ErrUnauthenticated)
    }
    return c.JSON(http.StatusOK, envelope{Status: statusSuccess, Data: userData{User: u.Sanitized()}})
}
