package utils // package utils provides the credential primitives: password hashing, identity tokens and reset tokens

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrTokenInvalid is returned by TokenCodec.Verify for any token that must
// not be trusted: bad signature, unexpected algorithm, corrupt structure or
// expiry in the past.
var ErrTokenInvalid = errors.New("invalid token")

// IdentityToken is a signed HS256 JWT together with its expiry.  The Token
// field is what clients present in the Authorization header or jwt cookie.
type IdentityToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// TokenClaims is the verified content of an identity token.
type TokenClaims struct {
    Subject   string    // user id
    IssuedAt  time.Time // iat, second precision
    ExpiresAt time.Time // exp, second precision
}

// TokenCodec signs and verifies identity tokens.  The secret and lifetime
// are fixed at construction and the codec is safe for concurrent use.
type TokenCodec struct {
    secret   []byte
    lifetime time.Duration
}

// NewTokenCodec builds a codec for the given signing secret and lifetime.
func NewTokenCodec(secret string, lifetime time.Duration) *TokenCodec {
    return &TokenCodec{secret: []byte(secret), lifetime: lifetime}
}

// Lifetime returns how long issued tokens stay valid.
func (c *TokenCodec) Lifetime() time.Duration { return c.lifetime }

// Issue builds and signs a token for subject.  The claims carry sub, iat=now
// and exp=now+lifetime.
func (c *TokenCodec) Issue(subject string, now time.Time) (IdentityToken, error) {
    now = now.UTC()
    exp := now.Add(c.lifetime)
    claims := jwt.RegisteredClaims{
        Subject:   subject,
        IssuedAt:  jwt.NewNumericDate(now),
        ExpiresAt: jwt.NewNumericDate(exp),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
    if err != nil {
        return IdentityToken{}, err
    }
    return IdentityToken{Token: signed, Exp: claims.ExpiresAt.Time}, nil
}

// Verify parses raw and checks signature and expiry against now.  It does
// not know about password changes; callers compare IssuedAt with the
// subject's password change time after loading it.
func (c *TokenCodec) Verify(raw string, now time.Time) (TokenClaims, error) {
    var claims jwt.RegisteredClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
        }
        return c.secret, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(func() time.Time { return now }),
    )
    if err != nil {
        return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
    }
    if !tok.Valid || claims.Subject == "" || claims.IssuedAt == nil {
        return TokenClaims{}, ErrTokenInvalid
    }
    return TokenClaims{
        Subject:   claims.Subject,
        IssuedAt:  claims.IssuedAt.Time,
        ExpiresAt: claims.ExpiresAt.Time,
    }, nil
}
