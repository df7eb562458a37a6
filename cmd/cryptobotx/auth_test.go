package main

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassword_PipedInput(t *testing.T) {
	t.Run("Reader", func(t *testing.T) {
		src := strings.NewReader("user@example.com\nsecret1\n")
		in := bufio.NewReader(src)
		var out bytes.Buffer

		email, err := prompt(&out, in, "Email")
		require.NoError(t, err)
		password, err := readPassword(&out, src, in)
		require.NoError(t, err)

		assert.Equal(t, "user@example.com", email)
		assert.Equal(t, "secret1", password)
		assert.Equal(t, "Email: Password: ", out.String())
	})

	t.Run("Pipe", func(t *testing.T) {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		defer r.Close()
		_, err = w.WriteString("hunter2\n")
		require.NoError(t, err)
		require.NoError(t, w.Close())
		var out bytes.Buffer

		password, err := readPassword(&out, r, bufio.NewReader(r))

		require.NoError(t, err)
		assert.Equal(t, "hunter2", password)
	})

	t.Run("ClosedInput", func(t *testing.T) {
		src := strings.NewReader("")
		_, err := readPassword(&bytes.Buffer{}, src, bufio.NewReader(src))
		assert.ErrorContains(t, err, "failed to read password")
	})
}
