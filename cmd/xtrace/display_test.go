package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplaySocketResolvesStandardDisplay(t *testing.T) {
	sock, err := displaySocket(":1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/.X11-unix/X1", sock)
}

func TestDisplaySocketAcceptsScreenSuffix(t *testing.T) {
	sock, err := displaySocket(":0.0")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/.X11-unix/X0", sock)
}

func TestDisplaySocketRejectsNonLocal(t *testing.T) {
	_, err := displaySocket("remotehost:0")
	assert.Error(t, err)
}

func TestParseDisplayNumber(t *testing.T) {
	n, err := parseDisplayNumber(":42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
