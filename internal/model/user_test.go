package model

import (
    "encoding/json"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestUser_ResetTokenFieldsMoveTogether(t *testing.T) {
    var u User
    assert.False(t, u.HasResetToken())

    u.SetResetToken("abc", time.Now())
    require.True(t, u.HasResetToken())
    assert.Equal(t, "abc", *u.PasswordResetToken)

    u.ClearResetToken()
    assert.Nil(t, u.PasswordResetToken)
    assert.Nil(t, u.PasswordResetExpires)
}

func TestUser_ChangedPasswordAfter(t *testing.T) {
    issued := time.Unix(1_700_000_000, 0)
    u := User{}
    assert.False(t, u.ChangedPasswordAfter(issued), "never changed")

    before := issued.Add(-time.Second)
    u.PasswordChangedAt = &before
    assert.False(t, u.ChangedPasswordAfter(issued))

    sameSecond := issued.Add(500 * time.Millisecond)
    u.PasswordChangedAt = &sameSecond
    assert.False(t, u.ChangedPasswordAfter(issued))

    after := issued.Add(2 * time.Second)
    u.PasswordChangedAt = &after
    assert.True(t, u.ChangedPasswordAfter(issued))
}

func TestUser_JSONNeverContainsSecrets(t *testing.T) {
    now := time.Now()
    u := User{ID: 1, Name: "A", Username: "a@b.com", PasswordHash: "$2a$hash", PasswordChangedAt: &now}
    u.SetResetToken("digest", now)

    raw, err := json.Marshal(u.Sanitized())
    require.NoError(t, err)

    var m map[string]any
    require.NoError(t, json.Unmarshal(raw, &m))
    assert.Equal(t, "a@b.com", m["username"])
    assert.NotContains(t, string(raw), "hash")
    assert.NotContains(t, string(raw), "digest")
    assert.NotContains(t, m, "password")
}
