package testutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDBConfig(t *testing.T) {
	for _, key := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME", "DB_SSL_MODE"} {
		t.Setenv(key, "")
	}
	assert.Equal(t, DBConfig{
		Host: "localhost", Port: "55432", User: "moderation", Password: "moderation", Name: "moderation", SSLMode: "disable",
	}, DefaultDBConfig())

	t.Setenv("TEST_DB_PORT", "5432")
	t.Setenv("TEST_DB_NAME", "ci")
	cfg := DefaultDBConfig()
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "ci", cfg.Name)
}

func TestDBConfigDSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", Name: "n", SSLMode: "disable"}

	u, err := url.Parse(cfg.DSN(""))
	require.NoError(t, err)
	assert.Equal(t, "db:5432", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Empty(t, u.Query().Get("search_path"))

	u, err = url.Parse(cfg.DSN("t_abc"))
	require.NoError(t, err)
	assert.Equal(t, "t_abc,public", u.Query().Get("search_path"))
}

func TestSchemaName(t *testing.T) {
	a, b := schemaName(), schemaName()
	assert.True(t, strings.HasPrefix(a, "t_"))
	assert.Len(t, a, len("t_")+8)
	assert.NotEqual(t, a, b)
}
