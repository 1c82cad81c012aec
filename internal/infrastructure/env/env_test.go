package env

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvService_Getters(t *testing.T) {
	e := NewMapEnv(map[string]string{
		"NAME":     "  agent ",
		"ENABLED":  "true",
		"COUNT":    "7",
		"RATIO":    "0.5",
		"TIMEOUT":  "90s",
		"SECONDS":  "30",
		"BAD_INT":  "seven",
		"BAD_BOOL": "maybe",
	})

	assert.Equal(t, "agent", e.Get("NAME"))
	assert.Equal(t, "fallback", e.GetOr("MISSING", "fallback"))

	b, err := e.GetBool("ENABLED", false)
	require.NoError(t, err)
	assert.True(t, b)

	n, err := e.GetInt("COUNT", 1)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = e.GetInt("MISSING", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := e.GetFloat("RATIO", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	d, err := e.GetDuration("TIMEOUT", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = e.GetDuration("SECONDS", 0)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	_, err = e.GetInt("BAD_INT", 1)
	assert.ErrorContains(t, err, "BAD_INT")

	_, err = e.GetBool("BAD_BOOL", false)
	assert.Error(t, err)
}

func TestEnvService_Require(t *testing.T) {
	e := NewMapEnv(map[string]string{"KEY": "v", "BLANK": "  "})

	v, err := e.Require("KEY")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = e.Require("BLANK")
	assert.True(t, errors.Is(err, ErrMissing))
}
