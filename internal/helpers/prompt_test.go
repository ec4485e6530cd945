package helpers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYesNo(t *testing.T) {
	cases := map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		"n\n":     false,
		"\n":      false,
		"maybe\n": false,
		"yes":     true,
	}
	for in, want := range cases {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader(in), &out)
		got, err := p.YesNo("Connect?")
		require.NoError(t, err, "%q", in)
		assert.Equal(t, want, got, "%q", in)
		assert.Contains(t, out.String(), "Connect? [y/N]")
	}
}

func TestYesNoEOF(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	_, err := p.YesNo("Connect?")
	assert.Error(t, err)
}

func TestLineWithDefault(t *testing.T) {
	p := NewPrompter(strings.NewReader("\ncustom\n"), &bytes.Buffer{})
	assert.Equal(t, "fallback", p.LineWithDefault("Name", "fallback"))
	assert.Equal(t, "custom", p.LineWithDefault("Name", "fallback"))
}

func TestPassphrase(t *testing.T) {
	p := NewPrompter(strings.NewReader("correct-horse\nshort\n"), &bytes.Buffer{})

	pw, err := p.Passphrase("Passphrase: ")
	require.NoError(t, err)
	assert.Equal(t, "correct-horse", string(pw))

	_, err = p.Passphrase("Passphrase: ")
	assert.Error(t, err)
}

func TestValidInfuraKey(t *testing.T) {
	assert.True(t, ValidInfuraKey("0123456789abcdef0123456789ABCDEF"))
	assert.False(t, ValidInfuraKey("0123"))
	assert.False(t, ValidInfuraKey("0123456789abcdef0123456789abcdeg"))
}

func TestZeroBytes(t *testing.T) {
	b := []byte("secret")
	ZeroBytes(b)
	assert.Equal(t, make([]byte, 6), b)
}
