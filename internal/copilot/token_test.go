package copilot

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAppsConfig(t *testing.T, content string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("apps.json discovery path differs on windows")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "github-copilot")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apps.json"), []byte(content), 0o600))
}

func TestResolveToken_ExplicitWins(t *testing.T) {
	t.Setenv("COPILOT_API_KEY", "from-env")

	token, err := ResolveToken("from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", token)
}

func TestResolveToken_Environment(t *testing.T) {
	t.Setenv("COPILOT_API_KEY", "from-env")

	token, err := ResolveToken("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestResolveToken_AppsConfig(t *testing.T) {
	t.Setenv("COPILOT_API_KEY", "")
	writeAppsConfig(t, `{"tokens":{"github.com:app":{"token":"from-apps","expires_at":0}}}`)

	token, err := ResolveToken("")
	require.NoError(t, err)
	assert.Equal(t, "from-apps", token)
}

func TestResolveToken_SkipsExpiredTokens(t *testing.T) {
	t.Setenv("COPILOT_API_KEY", "")

	expired := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	writeAppsConfig(t, `{"tokens":{"github.com:app":{"token":"stale","expires_at":`+expired+`}}}`)

	_, err := ResolveToken("")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestResolveToken_NoSources(t *testing.T) {
	t.Setenv("COPILOT_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, err := ResolveToken("")
	assert.ErrorIs(t, err, ErrNoToken)
}
