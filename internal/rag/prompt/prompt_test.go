package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaults = Prompts{SystemPrompt: "default system", UserPrompt: "default user"}

func writePrompts(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNewWithoutPathUsesDefaults(t *testing.T) {
	s, err := New("", defaults)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, defaults, s.Get())
	require.NoError(t, s.Watch())
}

func TestNewLoadsFileAndFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	writePrompts(t, path, `{"system_prompt":"You are a historian."}`)

	s, err := New(path, defaults)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got := s.Get()
	assert.Equal(t, "You are a historian.", got.SystemPrompt)
	assert.Equal(t, "default user", got.UserPrompt)
}

func TestNewFailsOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	writePrompts(t, path, `{not json`)

	_, err := New(path, defaults)
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing.json"), defaults)
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	writePrompts(t, path, `{"system_prompt":"v1","user_prompt":"u1"}`)

	reloaded := make(chan Prompts, 1)
	s, err := New(path, defaults, WithReloadHook(func(p Prompts) {
		select {
		case reloaded <- p:
		default:
		}
	}))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	<-reloaded

	require.NoError(t, s.Watch())
	writePrompts(t, path, `{"system_prompt":"v2","user_prompt":"u2"}`)

	assert.Eventually(t, func() bool {
		return s.Get().SystemPrompt == "v2"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "u2", s.Get().UserPrompt)
}

func TestWatchKeepsPreviousOnBadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	writePrompts(t, path, `{"system_prompt":"v1","user_prompt":"u1"}`)

	s, err := New(path, defaults)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Watch())

	writePrompts(t, path, `{broken`)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "v1", s.Get().SystemPrompt)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	writePrompts(t, path, `{}`)

	s, err := New(path, defaults)
	require.NoError(t, err)
	require.NoError(t, s.Watch())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, defaults, s.Get())
}
