package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/infigaming-com/go-authredis/security"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigCommand(t *testing.T) {
	path := writeFile(t, "auth.yaml", `
redis-auth:
  redis-manager:
    host: 10.0.0.1:6379,10.0.0.2:6379
    deploy-mode: cluster
    password: secret
`)
	t.Setenv("REDIS_AUTH_SESSION_DAO_KEY_PREFIX", "app:session:")

	out, err := execute(t, "", "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "redis-auth.redis-manager.password=******")
	assert.Contains(t, out, "redis-auth.session-dao.key-prefix=app:session:")
	assert.Contains(t, out, "# topology=cluster addrs=[10.0.0.1:6379 10.0.0.2:6379]")
	assert.NotContains(t, out, "secret")
}

func TestConfigCommandDisabled(t *testing.T) {
	path := writeFile(t, "auth.properties", "redis-auth.enabled=false\n")
	out, err := execute(t, "", "config", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# disabled")
}

func TestConfigCommandInvalid(t *testing.T) {
	path := writeFile(t, "auth.properties", "redis-auth.redis-manager.database=zero\n")
	_, err := execute(t, "", "config", "-c", path)
	assert.Error(t, err)
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "", "hash-password", "--cost", "4", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	out, err = execute(t, "from-stdin\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = execute(t, "", "hash-password")
	assert.Error(t, err)
}

func TestLoadAccounts(t *testing.T) {
	hash, err := security.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	path := writeFile(t, "accounts.yaml", `
accounts:
  alice:
    password_hash: "`+string(hash)+`"
    roles: [admin]
    permissions: ["sessions:*"]
`)

	accounts, err := loadAccounts(path)
	require.NoError(t, err)
	require.Contains(t, accounts, "alice")
	assert.Equal(t, []string{"admin"}, accounts["alice"].Roles)
	assert.Equal(t, []string{"sessions:*"}, accounts["alice"].Permissions)

	realms, err := buildRealms(&serveOptions{accountsPath: path, jwtSecret: "k"})
	require.NoError(t, err)
	require.Len(t, realms, 2)
	assert.Equal(t, "accounts", realms[0].Name())
	assert.Equal(t, "jwt", realms[1].Name())

	bad := writeFile(t, "bad.yaml", "accounts:\n  bob:\n    roles: [x]\n")
	_, err = loadAccounts(bad)
	assert.Error(t, err)
}

func TestEnvFileOverlay(t *testing.T) {
	const name = "REDIS_AUTH_SESSION_DAO_EXPIRE"
	t.Cleanup(func() { _ = os.Unsetenv(name) })
	envPath := writeFile(t, ".env", name+"=900\n")

	out, err := execute(t, "", "config", "--env-file", envPath)
	require.NoError(t, err)
	assert.Contains(t, out, "redis-auth.session-dao.expire=900")

	_, err = execute(t, "", "config", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
