package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Keywords.ActiveLimit)
	assert.Equal(t, "reports", cfg.Report.Dir)
	assert.Equal(t, []string{"web", "video", "code", "arxiv", "news"}, cfg.Platforms)
	assert.Equal(t, "one_search", cfg.Servers[PlatformWeb].PrimaryTool(""))
	assert.Equal(t, "ja", cfg.Servers[PlatformVideo].Env["YOUTUBE_TRANSCRIPT_LANG"])
	assert.Equal(t, 3*time.Second, cfg.SessionTimeout)
}

func TestLoadConfigOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
llm:
  provider: openai
  model: gpt-4o-mini
keywords:
  active_limit: 3
  seeds: [LLM, RAG]
platforms: [web, news]
servers:
  news:
    command: hn-mcp
    tools: [search]
shutdown_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Keywords.ActiveLimit)
	assert.Equal(t, []string{"LLM", "RAG"}, cfg.Keywords.Seeds)
	assert.Equal(t, []string{"web", "news"}, cfg.Platforms)
	assert.Equal(t, "hn-mcp", cfg.Servers[PlatformNews].Command)
	// 未在文件中出现的服务保留默认值
	assert.Equal(t, "one-search-mcp", cfg.Servers[PlatformWeb].Command)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 1, cfg.Concurrency.Pairs)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "parse config failed")
}

func TestLoadCredentials(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "gemini"

	err := cfg.loadCredentials(map[string]string{
		"GEMINI_API_KEY":        "g-key",
		"ANTHROPIC_API_KEY":     "a-key",
		"NOTION_PARENT_PAGE_ID": "page-1",
		"TREND_RADAR_LOG_LEVEL": "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, "page-1", cfg.Report.Notion.ParentPageID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadCredentialsKeepsFileValues(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "from-file"

	require.NoError(t, cfg.loadCredentials(map[string]string{"ANTHROPIC_API_KEY": "from-env"}))
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
}

func TestEnabledServers(t *testing.T) {
	cfg := Default()
	env := map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": "tok"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	enabled, skipped := cfg.EnabledServers(lookup)

	assert.Equal(t, []string{"arxiv", "code", "news", "web"}, ServerNames(enabled))
	assert.Equal(t, "missing YOUTUBE_API_KEY", skipped[PlatformVideo])
	assert.Equal(t, "missing NOTION_API_KEY", skipped["notion"])
}

func TestEnabledServersDisabledAndUnknown(t *testing.T) {
	cfg := Default()
	cfg.Platforms = []string{PlatformWeb, "podcast"}
	cfg.Report.Notion.Enabled = false
	web := cfg.Servers[PlatformWeb]
	web.Disabled = true
	cfg.Servers[PlatformWeb] = web

	enabled, skipped := cfg.EnabledServers(func(string) (string, bool) { return "", false })

	assert.Empty(t, enabled)
	assert.Equal(t, map[string]string{"web": "disabled", "podcast": "no server configured"}, skipped)
}

func TestLoadUsesConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords:\n  active_limit: 9\nsession_connect_timeout: 5s\n"), 0o644))
	t.Setenv("TREND_RADAR_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Keywords.ActiveLimit)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, path, cfg.Credentials.ConfigPathOverwrite)
}
