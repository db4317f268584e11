package claims

import (
	"bytes"
	"crypto/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^AGT-[0-9A-F]{12}$`)

func TestCodeGenerator_Format(t *testing.T) {
	g := NewCodeGenerator([]byte("secret"), rand.Reader)
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := g.Generate("0xabc", now)
		require.NoError(t, err)
		require.Regexp(t, codePattern, code)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestCodeGenerator_DependsOnSecretAndInputs(t *testing.T) {
	nonce := bytes.Repeat([]byte{7}, nonceSize)
	at := time.UnixMilli(1700000000000)
	gen := func(secret, address string, now time.Time) string {
		code, err := NewCodeGenerator([]byte(secret), bytes.NewReader(nonce)).Generate(address, now)
		require.NoError(t, err)
		return code
	}

	base := gen("secret", "0xabc", at)
	assert.Equal(t, base, gen("secret", "0xabc", at))
	assert.NotEqual(t, base, gen("other", "0xabc", at))
	assert.NotEqual(t, base, gen("secret", "0xdef", at))
	assert.NotEqual(t, base, gen("secret", "0xabc", at.Add(time.Millisecond)))
}

func TestCodeGenerator_NonceFailure(t *testing.T) {
	g := NewCodeGenerator([]byte("secret"), bytes.NewReader([]byte{1, 2}))
	_, err := g.Generate("0xabc", time.Now())
	assert.Error(t, err)
}

func TestCodeGenerator_KnownVector(t *testing.T) {
	// HMAC-SHA256("test-secret", "0x…aa:1700000000000:0707070707070707")[:12]
	nonce := bytes.Repeat([]byte{7}, nonceSize)
	g := NewCodeGenerator([]byte("test-secret"), bytes.NewReader(nonce))

	code, err := g.Generate("0x00000000000000000000000000000000000000aa", time.UnixMilli(1700000000000))
	require.NoError(t, err)
	assert.Equal(t, "AGT-4D849AC15A6D", code)
}
