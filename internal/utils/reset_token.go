package utils

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 digests of reset tokens
    "crypto/subtle"
    "encoding/hex"
    "time"
)

// Reset token defaults.
const (
    ResetTokenBytes  = 32               // 32 bytes = 256 bits = 64 hex chars
    ResetTokenWindow = 10 * time.Minute // validity of a reset link
)

// ResetToken is a freshly generated one-time secret.  Plain is handed to
// the user (inside the reset link); only Digest and Exp are persisted.
type ResetToken struct {
    Plain  string    // raw token returned to the caller
    Digest string    // SHA‑256 hex digest of Plain
    Exp    time.Time // UTC expiration time
}

// ResetTokenGenerator creates and matches password reset tokens.
type ResetTokenGenerator struct {
    window time.Duration
}

// NewResetTokenGenerator returns a generator whose tokens expire window
// after generation.  A non-positive window falls back to ResetTokenWindow.
func NewResetTokenGenerator(window time.Duration) *ResetTokenGenerator {
    if window <= 0 {
        window = ResetTokenWindow
    }
    return &ResetTokenGenerator{window: window}
}

// Generate returns a new random token, its digest and its expiry.
func (g *ResetTokenGenerator) Generate(now time.Time) (ResetToken, error) {
    raw, err := randomHex(ResetTokenBytes)
    if err != nil {
        return ResetToken{}, err
    }
    return ResetToken{
        Plain:  raw,
        Digest: DigestResetToken(raw),
        Exp:    now.UTC().Add(g.window),
    }, nil
}

// Match reports whether candidate hashes to the stored digest and the
// stored expiry has not passed.  Missing stored fields never match.
func (g *ResetTokenGenerator) Match(candidate string, digest *string, exp *time.Time, now time.Time) bool {
    if candidate == "" || digest == nil || exp == nil {
        return false
    }
    computed := DigestResetToken(candidate)
    if subtle.ConstantTimeCompare([]byte(computed), []byte(*digest)) != 1 {
        return false
    }
    return !now.After(*exp)
}

// DigestResetToken returns the SHA‑256 hash of the raw reset token as a hex
// string.  Unlike password hashing this is unsalted so the confirm step can
// recompute it for lookup.
func DigestResetToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
