package signing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/infrastructure/signing"
)

func TestSigner_SignVerify(t *testing.T) {
	t.Parallel()

	s := signing.NewSigner("secret")
	sig := s.Sign("song-123")

	assert.Len(t, sig, signing.SignatureLength)
	assert.True(t, s.Verify("song-123", sig))
	assert.False(t, s.Verify("song-124", sig))
	assert.False(t, signing.NewSigner("other").Verify("song-123", sig))
}

func TestSigner_Tokens(t *testing.T) {
	t.Parallel()

	s := signing.NewSigner("secret")

	a, err := s.NewToken()
	require.NoError(t, err)
	b, err := s.NewToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, s.ValidToken(a))
	assert.False(t, signing.NewSigner("other").ValidToken(a))
	assert.False(t, s.ValidToken(strings.Replace(a, ".", "x", 1)))
	assert.False(t, s.ValidToken(""))
	assert.False(t, s.ValidToken(".abc"))
}
