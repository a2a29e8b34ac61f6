package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutReadSweep(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("abc/roster.csv", []byte("Student\n")))
	body, err := store.Read("abc/roster.csv")
	require.NoError(t, err)
	assert.Equal(t, "Student\n", string(body))

	_, err = store.Read("missing.csv")
	assert.ErrorIs(t, err, ErrNotStored)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "abc", "roster.csv"), old, old))
	require.NoError(t, store.Put("fresh.csv", []byte("x")))

	removed, err := store.Sweep(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = store.Read("abc/roster.csv")
	assert.ErrorIs(t, err, ErrNotStored)
	_, err = store.Read("fresh.csv")
	assert.NoError(t, err)
}

func TestStoreRejectsEscapingNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../secret", "/etc/passwd", "a/../../b"} {
		assert.Error(t, store.Put(name, []byte("x")), name)
	}
}

func TestLinkSignerRoundTrip(t *testing.T) {
	signer := NewLinkSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("abc/roster.pdf")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	name, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "abc/roster.pdf", name)
}

func TestLinkSignerRejectsTamperingAndExpiry(t *testing.T) {
	signer := NewLinkSigner("secret", time.Minute)
	token, _, err := signer.Sign("abc/roster.csv")
	require.NoError(t, err)

	_, err = NewLinkSigner("other", time.Minute).Verify(token)
	assert.ErrorIs(t, err, ErrLinkInvalid)

	_, err = signer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrLinkInvalid)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrLinkExpired)

	_, _, err = NewLinkSigner("", time.Minute).Sign("x")
	assert.Error(t, err)
}
