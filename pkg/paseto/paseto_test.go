package pasetotoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, keys Keys, now func() time.Time) *Manager {
	t.Helper()
	m, err := New(Config{
		Mode:      keys.Mode,
		Issuer:    "consultorio",
		Audience:  "consultorio-api",
		AccessTTL: time.Minute,
		Now:       now,
	}, keys)
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	for _, keys := range []Keys{NewLocalKeys(), NewPublicKeys()} {
		t.Run(string(keys.Mode), func(t *testing.T) {
			m := newManager(t, keys, nil)

			tok, err := m.IssueAccess("u1", "s1")
			require.NoError(t, err)

			c, err := m.VerifyType(tok, TokenTypeAccess)
			require.NoError(t, err)
			assert.Equal(t, "u1", c.AccountID)
			assert.Equal(t, "s1", c.SessionID)
			assert.NotEmpty(t, c.TokenID)

			_, err = m.VerifyType(tok, TokenTypeRefresh)
			assert.ErrorIs(t, err, ErrWrongTokenType)
		})
	}
}

func TestVerifyUsesCurrentTime(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newManager(t, NewLocalKeys(), clock)

	// a token issued well after the manager was built is still valid
	now = now.Add(time.Hour)
	tok, err := m.IssueAccess("u1", "")
	require.NoError(t, err)
	_, err = m.Verify(tok)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Verify(tok)
	var invalid ErrInvalidToken
	assert.ErrorAs(t, err, &invalid)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	a := newManager(t, NewLocalKeys(), nil)
	b := newManager(t, NewLocalKeys(), nil)

	tok, err := a.IssueRefresh("u1", "s1")
	require.NoError(t, err)
	_, err = b.Verify(tok)
	assert.Error(t, err)
}

func TestLoadKeys(t *testing.T) {
	k, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: GenerateLocalKeyHex()})
	require.NoError(t, err)
	assert.NotNil(t, k.Symmetric)

	_, err = LoadKeys(KeyStrings{Mode: ModeLocal})
	assert.Error(t, err)

	pub := NewPublicKeys()
	k, err = LoadKeys(KeyStrings{Mode: ModePublic, SecretHex: pub.Secret.ExportHex()})
	require.NoError(t, err)
	assert.Equal(t, pub.Public.ExportHex(), k.Public.ExportHex())

	_, err = LoadKeys(KeyStrings{Mode: "jwt"})
	assert.Error(t, err)
}
