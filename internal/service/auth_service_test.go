package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/notify"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// memRepo is an in-memory UserRepository.
type memRepo struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
	saves  []model.User
}

func newMemRepo() *memRepo { return &memRepo{byID: map[uint64]model.User{}} }

func (r *memRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == strings.ToLower(username) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) FindByID(_ context.Context, id uint64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memRepo) FindByResetToken(_ context.Context, digest string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == digest {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) Create(_ context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Username = strings.ToLower(u.Username)
	for _, existing := range r.byID {
		if existing.Username == u.Username {
			return nil, repository.ErrUsernameExists
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.byID[u.ID] = *u
	return u, nil
}

func (r *memRepo) Save(_ context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	r.byID[u.ID] = *u
	r.saves = append(r.saves, *u)
	return u, nil
}

// fakeTransport records mails and optionally fails.
type fakeTransport struct {
	mu   sync.Mutex
	sent []notify.Mail
	err  error
}

func (f *fakeTransport) Send(_ context.Context, m notify.Mail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return f.err
}

type fixture struct {
	svc       *AuthService
	repo      *memRepo
	transport *fakeTransport
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemRepo(),
		transport: &fakeTransport{},
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	d := notify.NewDispatcher("Natours <noreply@example.com>", f.transport, zerolog.Nop())
	f.svc = NewAuthService(f.repo, d,
		utils.NewTokenCodec("test-secret", time.Hour),
		utils.NewResetTokenGenerator(10*time.Minute),
		4, zerolog.Nop()).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) signup(t *testing.T) *AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Ada Lovelace", Username: "a@b.com",
		Password: "12345678", PasswordConfirm: "12345678",
		BaseURL: "http://localhost:8080",
	})
	require.NoError(t, err)
	return res
}

// resetPlain pulls the plaintext token out of the last reset mail.
func (f *fixture) resetPlain(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.transport.sent)
	last := f.transport.sent[len(f.transport.sent)-1]
	const marker = "/resetPassword/"
	i := strings.Index(last.HTML, marker)
	require.GreaterOrEqual(t, i, 0)
	return last.HTML[i+len(marker) : i+len(marker)+2*utils.ResetTokenBytes]
}

func TestSignup_CreatesUserAndSendsWelcome(t *testing.T) {
	f := newFixture(t)
	res := f.signup(t)

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "a@b.com", res.User.Username)
	assert.Empty(t, res.User.PasswordHash)

	stored, err := f.repo.FindByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "12345678", stored.PasswordHash)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "12345678"))

	require.Len(t, f.transport.sent, 1)
	assert.Equal(t, "a@b.com", f.transport.sent[0].To)
	assert.Equal(t, "Welcome to the Natours Family!", f.transport.sent[0].Subject)
	assert.Contains(t, f.transport.sent[0].HTML, "Ada")
	assert.Contains(t, f.transport.sent[0].HTML, "http://localhost:8080/me")
}

func TestSignup_WelcomeFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.transport.err = errors.New("smtp down")

	res := f.signup(t)
	assert.NotEmpty(t, res.Token)
	_, err := f.repo.FindByUsername(context.Background(), "a@b.com")
	assert.NoError(t, err)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "A", Username: "a@b.com", Password: "12345678", PasswordConfirm: "87654321",
	})
	assert.ErrorIs(t, err, ErrValidation)

	f.signup(t)
	_, err = f.svc.Signup(context.Background(), SignupInput{
		Name: "B", Username: "A@B.com", Password: "12345678", PasswordConfirm: "12345678",
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "username already taken")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.signup(t)

	res, err := f.svc.Login(context.Background(), "a@b.com", "12345678")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, f.now.Add(time.Hour), res.Expires)

	_, wrongPw := f.svc.Login(context.Background(), "a@b.com", "nope-nope")
	_, noUser := f.svc.Login(context.Background(), "x@y.com", "12345678")
	assert.ErrorIs(t, wrongPw, ErrInvalidCredentials)
	assert.ErrorIs(t, noUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPw.Error(), noUser.Error())
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	out := f.svc.Logout()
	assert.Equal(t, LoggedOutCookie, out.Value)
	assert.Equal(t, f.now.Add(10*time.Second), out.Expires)
}

func TestProtect(t *testing.T) {
	f := newFixture(t)
	res := f.signup(t)

	u, err := f.svc.Protect(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, u.ID)

	_, err = f.svc.Protect(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Protect(context.Background(), LoggedOutCookie)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Protect(context.Background(), res.Token+"x")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	f.now = f.now.Add(time.Hour + time.Second)
	_, err = f.svc.Protect(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProtect_DeletedUser(t *testing.T) {
	f := newFixture(t)
	tok, err := utils.NewTokenCodec("test-secret", time.Hour).Issue(strconv.Itoa(99), f.now)
	require.NoError(t, err)

	_, err = f.svc.Protect(context.Background(), tok.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Contains(t, err.Error(), "no longer exists")
}

func TestProtect_StaleAfterPasswordChange(t *testing.T) {
	f := newFixture(t)
	res := f.signup(t) // T1

	f.now = f.now.Add(time.Minute) // T2
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@b.com", "http://h/api/v1/users/resetPassword/"))
	_, err := f.svc.ResetPassword(context.Background(), f.resetPlain(t), "newpassword", "newpassword")
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute) // T3
	_, err = f.svc.Protect(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrStalePasswordToken)
	assert.Nil(t, f.svc.CurrentUser(context.Background(), res.Token))
}

// Staleness is compared in whole seconds and the change time is backdated
// by one second, so a token issued in the same second as the change time
// still passes.  Tokens from an earlier second are rejected.
func TestProtect_StalenessWindow(t *testing.T) {
	f := newFixture(t)
	t0 := f.now
	old := f.signup(t) // iat = t0

	f.now = t0.Add(1500 * time.Millisecond)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@b.com", "http://h/api/v1/users/resetPassword/"))
	_, err := f.svc.ResetPassword(context.Background(), f.resetPlain(t), "newpassword", "newpassword")
	require.NoError(t, err) // changedAt = t0+0.5s

	f.now = t0.Add(2500 * time.Millisecond)
	_, err = f.svc.Protect(context.Background(), old.Token)
	assert.NoError(t, err, "token from the change's own second is accepted")

	f2 := newFixture(t)
	old2 := f2.signup(t)
	f2.now = t0.Add(2500 * time.Millisecond)
	require.NoError(t, f2.svc.ForgotPassword(context.Background(), "a@b.com", "http://h/api/v1/users/resetPassword/"))
	_, err = f2.svc.ResetPassword(context.Background(), f2.resetPlain(t), "newpassword", "newpassword")
	require.NoError(t, err) // changedAt = t0+1.5s

	_, err = f2.svc.Protect(context.Background(), old2.Token)
	assert.ErrorIs(t, err, ErrStalePasswordToken)
}

func TestForgotPassword_UnknownUser(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ForgotPassword(context.Background(), "ghost@b.com", "http://h/")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, f.transport.sent)
}

func TestForgotPassword_PersistsBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	f.signup(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@b.com", "http://h/api/v1/users/resetPassword/"))

	require.Len(t, f.repo.saves, 1)
	assert.True(t, f.repo.saves[0].HasResetToken())
	assert.Equal(t, f.now.Add(10*time.Minute), *f.repo.saves[0].PasswordResetExpires)

	mail := f.transport.sent[len(f.transport.sent)-1]
	assert.Equal(t, "Your password reset token (valid for only 10 minutes)", mail.Subject)
	plain := f.resetPlain(t)
	assert.Equal(t, utils.DigestResetToken(plain), *f.repo.saves[0].PasswordResetToken)
	assert.NotContains(t, *f.repo.saves[0].PasswordResetToken, plain)
}

func TestForgotPassword_DispatchFailureClearsState(t *testing.T) {
	f := newFixture(t)
	f.signup(t)
	f.transport.err = errors.New("smtp down")

	err := f.svc.ForgotPassword(context.Background(), "a@b.com", "http://h/api/v1/users/resetPassword/")
	assert.ErrorIs(t, err, ErrDispatchFailure)

	require.Len(t, f.repo.saves, 2)
	assert.True(t, f.repo.saves[0].HasResetToken())
	assert.False(t, f.repo.saves[1].HasResetToken())

	_, err = f.svc.ResetPassword(context.Background(), f.resetPlain(t), "newpassword", "newpassword")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	f.signup(t)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@b.com", "http://h/api/v1/users/resetPassword/"))
	plain := f.resetPlain(t)

	_, err := f.svc.ResetPassword(context.Background(), plain, "newpassword", "mismatch")
	assert.ErrorIs(t, err, ErrValidation)

	res, err := f.svc.ResetPassword(context.Background(), plain, "newpassword", "newpassword")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	stored, err := f.repo.FindByUsername(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.False(t, stored.HasResetToken())
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "newpassword"))
	require.NotNil(t, stored.PasswordChangedAt)
	assert.Equal(t, f.now.Add(-time.Second), *stored.PasswordChangedAt)

	// fresh token is usable straight away
	_, err = f.svc.Protect(context.Background(), res.Token)
	assert.NoError(t, err)

	// single use
	_, err = f.svc.ResetPassword(context.Background(), plain, "another1", "another1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	f.signup(t)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@b.com", "http://h/api/v1/users/resetPassword/"))
	plain := f.resetPlain(t)

	f.now = f.now.Add(10*time.Minute + time.Second)
	_, err := f.svc.ResetPassword(context.Background(), plain, "newpassword", "newpassword")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.svc.ResetPassword(context.Background(), "", "newpassword", "newpassword")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestMailData_FirstName(t *testing.T) {
	d := mailData(&model.User{Name: "Ada Lovelace", Username: "a@b.com"})
	user := d["user"].(map[string]any)
	assert.Equal(t, "Ada", user["firstName"])
	assert.Equal(t, "10 minutes", humanDuration(10*time.Minute))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
}
