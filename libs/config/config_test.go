package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringFallback(t *testing.T) {
	t.Setenv("TELEHEALTH_TEST_NAME", "")
	assert.Equal(t, "fallback", String("TELEHEALTH_TEST_NAME", "fallback"))

	t.Setenv("TELEHEALTH_TEST_NAME", "  scheduling  ")
	assert.Equal(t, "scheduling", String("TELEHEALTH_TEST_NAME", "fallback"))
}

func TestRequiredString(t *testing.T) {
	t.Setenv("TELEHEALTH_TEST_SECRET", "")
	_, err := RequiredString("TELEHEALTH_TEST_SECRET")
	require.Error(t, err)

	t.Setenv("TELEHEALTH_TEST_SECRET", "s3cret")
	got, err := RequiredString("TELEHEALTH_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestPort(t *testing.T) {
	t.Setenv("TELEHEALTH_TEST_PORT", "70000")
	_, err := Port("TELEHEALTH_TEST_PORT", "8089")
	require.Error(t, err)

	t.Setenv("TELEHEALTH_TEST_PORT", "")
	p, err := Port("TELEHEALTH_TEST_PORT", "8089")
	require.NoError(t, err)
	assert.Equal(t, "8089", p)
}

func TestDuration(t *testing.T) {
	t.Setenv("TELEHEALTH_TEST_EVERY", "90")
	d, err := Duration("TELEHEALTH_TEST_EVERY", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	t.Setenv("TELEHEALTH_TEST_EVERY", "24h")
	d, err = Duration("TELEHEALTH_TEST_EVERY", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	t.Setenv("TELEHEALTH_TEST_EVERY", "soon")
	_, err = Duration("TELEHEALTH_TEST_EVERY", time.Minute)
	require.Error(t, err)
}

func TestIntAndList(t *testing.T) {
	t.Setenv("TELEHEALTH_TEST_LEAD", "15")
	n, err := Int("TELEHEALTH_TEST_LEAD", 5)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	t.Setenv("TELEHEALTH_TEST_ORIGINS", " https://a.example, ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, StringList("TELEHEALTH_TEST_ORIGINS", ""))
}
