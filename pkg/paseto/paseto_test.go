package pasetotoken

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, keys Keys, aud string) *Manager {
	t.Helper()
	m, err := New(Config{Mode: keys.Mode, Issuer: "freelancehub", Audience: aud}, keys)
	require.NoError(t, err)
	return m
}

func TestIssueVerify(t *testing.T) {
	for name, keys := range map[string]Keys{"local": NewLocalKeys(), "public": NewPublicKeys()} {
		t.Run(name, func(t *testing.T) {
			m := newManager(t, keys, "ledger")
			user, session := uuid.New(), uuid.New()

			tok, err := m.IssueAccess(user, &session)
			require.NoError(t, err)

			claims, err := m.Verify(tok)
			require.NoError(t, err)
			assert.Equal(t, TokenTypeAccess, claims.Type)
			assert.Equal(t, user, claims.UserID)
			require.NotNil(t, claims.SessionID)
			assert.Equal(t, session, *claims.SessionID)
			assert.False(t, claims.IsExpired())
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	keys := NewLocalKeys()
	m := newManager(t, keys, "ledger")

	svc, err := m.IssueService(uuid.New(), time.Hour)
	require.NoError(t, err)
	claims, err := m.Verify(svc)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeService, claims.Type)
	assert.Nil(t, claims.SessionID)

	other := newManager(t, keys, "someone-else")
	_, err = other.Verify(svc)
	var invalid ErrInvalidToken
	assert.True(t, errors.As(err, &invalid))

	_, err = newManager(t, NewLocalKeys(), "ledger").Verify(svc)
	assert.Error(t, err, "foreign key")

	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := m.IssueAccess(uuid.New(), nil)
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.Verify(expired)
	assert.Error(t, err)
}

func TestLoadKeys(t *testing.T) {
	_, err := LoadKeys(KeyStrings{Mode: ModeLocal})
	assert.Error(t, err)
	_, err = LoadKeys(KeyStrings{Mode: ModePublic})
	assert.Error(t, err)
	_, err = LoadKeys(KeyStrings{Mode: "nope"})
	assert.Error(t, err)

	k := NewLocalKeys()
	loaded, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: k.Symmetric.ExportHex()})
	require.NoError(t, err)
	assert.Equal(t, k.Symmetric.ExportHex(), loaded.Symmetric.ExportHex())
}
