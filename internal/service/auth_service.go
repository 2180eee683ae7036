// Package service holds the authentication flows: account creation, login,
// request protection and the two-step password reset.  Persistence and mail
// delivery are injected so the flows can run against fakes in tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/notify"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// LoggedOutCookie is the value written over the jwt cookie on logout.
const LoggedOutCookie = "loggedout"

// logoutTTL is how long the sentinel cookie lives.
const logoutTTL = 10 * time.Second

// UserRepository is the persistence the service needs.  Lookups return
// repository.ErrNotFound when nothing matches.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByResetToken(ctx context.Context, digest string) (*model.User, error)
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Save(ctx context.Context, u *model.User) (*model.User, error)
}

// Notifier renders and sends one notification.  *notify.Dispatcher
// satisfies it.
type Notifier interface {
	Dispatch(ctx context.Context, kind notify.Kind, recipient string, data notify.Context) error
}

// SignupInput carries the fields of a signup request.  BaseURL is the
// scheme and host the welcome mail links back to.
type SignupInput struct {
	Name            string
	Username        string
	Password        string
	PasswordConfirm string
	BaseURL         string
}

// AuthResult is what a successful signup, login or reset hands back.
type AuthResult struct {
	Token   string
	Expires time.Time
	User    model.User // sanitized
}

// LogoutResult tells the caller what to overwrite the session cookie with.
type LogoutResult struct {
	Value   string
	Expires time.Time
}

type AuthService struct {
	users      UserRepository
	notifier   Notifier
	codec      *utils.TokenCodec
	resets     *utils.ResetTokenGenerator
	bcryptCost int
	log        zerolog.Logger
	now        func() time.Time
}

// NewAuthService wires the service.  All collaborators are required.
func NewAuthService(users UserRepository, notifier Notifier, codec *utils.TokenCodec,
	resets *utils.ResetTokenGenerator, bcryptCost int, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		notifier:   notifier,
		codec:      codec,
		resets:     resets,
		bcryptCost: bcryptCost,
		log:        log.With().Str("component", "auth").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.  Used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Signup creates the account, sends the welcome mail and logs the new user
// in.  A failed welcome mail is logged and otherwise ignored.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Username) == "" {
		return nil, fmt.Errorf("%w: name and username are required", ErrValidation)
	}
	if in.Password != in.PasswordConfirm {
		return nil, fmt.Errorf("%w: passwords are not the same", ErrValidation)
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrEmptyPassword) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "HashPassword").Wrap(err)
	}

	u, err := s.users.Create(ctx, &model.User{
		Name:         strings.TrimSpace(in.Name),
		Username:     in.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, fmt.Errorf("%w: username already taken", ErrValidation)
		}
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "Create").Wrap(err)
	}

	data := mailData(u)
	data["url"] = strings.TrimRight(in.BaseURL, "/") + "/me"
	if err := s.notifier.Dispatch(ctx, notify.KindWelcome, u.Username, data); err != nil {
		s.log.Warn().Err(err).Uint64("user_id", u.ID).Msg("welcome mail not sent")
	}

	return s.issue(u, "SIGNUP_FAILED")
}

// Login checks the credentials.  Unknown users and wrong passwords fail
// with the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: please provide username and password", ErrValidation)
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, oops.Code("LOGIN_FAILED").With("operation", "FindByUsername").Wrap(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u, "LOGIN_FAILED")
}

// Logout returns the sentinel cookie.  Issued tokens stay valid until they
// expire on their own.
func (s *AuthService) Logout() LogoutResult {
	return LogoutResult{Value: LoggedOutCookie, Expires: s.now().Add(logoutTTL)}
}

// Protect resolves a presented token to its user.  It fails when the token
// is missing, invalid, belongs to a deleted user or predates the user's
// last password change.
func (s *AuthService) Protect(ctx context.Context, token string) (*model.User, error) {
	if token == "" || token == LoggedOutCookie {
		return nil, ErrUnauthenticated
	}
	claims, err := s.codec.Verify(token, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: the user belonging to this token no longer exists", ErrUnauthenticated)
		}
		return nil, oops.Code("PROTECT_FAILED").With("operation", "FindByID").Wrap(err)
	}
	if u.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, ErrStalePasswordToken
	}
	return u, nil
}

// CurrentUser is Protect without the error: any failure yields nil.  It
// backs routes that render differently for signed-in visitors.
func (s *AuthService) CurrentUser(ctx context.Context, token string) *model.User {
	u, err := s.Protect(ctx, token)
	if err != nil {
		return nil
	}
	return u
}

// ForgotPassword stores a fresh reset digest on the user and mails the
// plaintext link.  If the mail cannot be sent the stored digest is cleared
// again so no unusable reset state is left behind.
func (s *AuthService) ForgotPassword(ctx context.Context, username, resetURLBase string) error {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "FindByUsername").Wrap(err)
	}

	rt, err := s.resets.Generate(s.now())
	if err != nil {
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "Generate").Wrap(err)
	}
	u.SetResetToken(rt.Digest, rt.Exp)
	if _, err := s.users.Save(ctx, u); err != nil {
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "Save").Wrap(err)
	}

	data := mailData(u)
	data["url"] = resetURLBase + rt.Plain
	data["expiresIn"] = humanDuration(rt.Exp.Sub(s.now()))
	if derr := s.notifier.Dispatch(ctx, notify.KindPasswordReset, u.Username, data); derr != nil {
		u.ClearResetToken()
		if _, err := s.users.Save(ctx, u); err != nil {
			s.log.Error().Err(err).Uint64("user_id", u.ID).Msg("clear reset token after failed mail")
		}
		return fmt.Errorf("%w: %v", ErrDispatchFailure, derr)
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password.  The user
// is logged in with a fresh token on success.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, passwordConfirm string) (*AuthResult, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	now := s.now()
	u, err := s.users.FindByResetToken(ctx, utils.DigestResetToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "FindByResetToken").Wrap(err)
	}
	if !s.resets.Match(token, u.PasswordResetToken, u.PasswordResetExpires, now) {
		return nil, ErrInvalidOrExpiredToken
	}
	if password != passwordConfirm {
		return nil, fmt.Errorf("%w: passwords are not the same", ErrValidation)
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrEmptyPassword) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "HashPassword").Wrap(err)
	}

	// One second back so the token issued below is not already stale.  With
	// whole-second comparison this also accepts tokens issued up to about
	// two seconds before the change.
	changed := now.Add(-time.Second)
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
	u.ClearResetToken()
	if _, err := s.users.Save(ctx, u); err != nil {
		return nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "Save").Wrap(err)
	}
	return s.issue(u, "RESET_PASSWORD_FAILED")
}

func (s *AuthService) issue(u *model.User, code string) (*AuthResult, error) {
	tok, err := s.codec.Issue(strconv.FormatUint(u.ID, 10), s.now())
	if err != nil {
		return nil, oops.Code(code).With("operation", "Issue").Wrap(err)
	}
	return &AuthResult{Token: tok.Token, Expires: tok.Exp, User: u.Sanitized()}, nil
}

// mailData exposes the user fields templates may reference.
func mailData(u *model.User) notify.Context {
	first := u.Name
	if f := strings.Fields(u.Name); len(f) > 0 {
		first = f[0]
	}
	return notify.Context{
		"user": map[string]any{
			"name":      u.Name,
			"firstName": first,
			"username":  u.Username,
		},
	}
}

func humanDuration(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	if mins == 1 {
		return "1 minute"
	}
	return strconv.Itoa(mins) + " minutes"
}
