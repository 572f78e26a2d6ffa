package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wadserv/src/auth"
)

func TestTokenCommandPrintsVerifiableToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"token",
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--id", "42",
		"--email", "john@example.com",
		"--username", "john",
	})
	require.NoError(t, cmd.Execute())

	claims, err := auth.NewVerifier("cli-secret", "token").ParseAndValidate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "42", claims.ID)
	assert.Equal(t, "john@example.com", claims.Email)
	assert.Equal(t, "john", claims.Username)
}

func TestTokenCommandRequiresEmail(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--id", "42"})
	assert.Error(t, cmd.Execute())
}
