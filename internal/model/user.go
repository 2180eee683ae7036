package model

import "time"

// User represents an account record as stored in the `users` table.
//
// Fields:
//  ID                   – primary key identifier of the user.
//  Name                 – display name.
//  Username             – unique login, an email address.
//  PasswordHash         – bcrypt digest; never serialized outward.
//  PasswordChangedAt    – last password change (nil until the first reset).
//  PasswordResetToken   – SHA‑256 hex digest of a pending reset token.
//  PasswordResetExpires – expiry of the pending reset token.
//  CreatedAt, UpdatedAt – bookkeeping timestamps.
//
// The two reset fields are either both set or both nil.
type User struct {
    ID                   uint64     `json:"id"`
    Name                 string     `json:"name"`
    Username             string     `json:"username"`
    PasswordHash         string     `json:"-"`
    PasswordChangedAt    *time.Time `json:"-"`
    PasswordResetToken   *string    `json:"-"`
    PasswordResetExpires *time.Time `json:"-"`
    CreatedAt            time.Time  `json:"createdAt"`
    UpdatedAt            time.Time  `json:"updatedAt"`
}

// SetResetToken records a pending reset digest together with its expiry.
func (u *User) SetResetToken(digest string, expires time.Time) {
    d, e := digest, expires.UTC()
    u.PasswordResetToken = &d
    u.PasswordResetExpires = &e
}

// ClearResetToken removes any pending reset state.
func (u *User) ClearResetToken() {
    u.PasswordResetToken = nil
    u.PasswordResetExpires = nil
}

// HasResetToken reports whether a reset is pending.
func (u *User) HasResetToken() bool {
    return u.PasswordResetToken != nil && u.PasswordResetExpires != nil
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token issue time.  Comparison is at second precision because token
// timestamps carry whole seconds.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
    if u.PasswordChangedAt == nil {
        return false
    }
    return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// Sanitized returns a copy safe to hand to response encoders: the password
// digest and reset state are stripped.
func (u *User) Sanitized() User {
    out := *u
    out.PasswordHash = ""
    out.PasswordChangedAt = nil
    out.ClearResetToken()
    return out
}
