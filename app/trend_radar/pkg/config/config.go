package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "configs/config.yaml"

// 研究平台
const (
	PlatformWeb   = "web"
	PlatformVideo = "video"
	PlatformCode  = "code"
	PlatformArxiv = "arxiv"
	PlatformNews  = "news"
)

// Config 项目配置结构体
type Config struct {
	LLM             LLMConfig               `yaml:"llm"`
	Keywords        KeywordsConfig          `yaml:"keywords"`
	Report          ReportConfig            `yaml:"report"`
	Platforms       []string                `yaml:"platforms"`
	Servers         map[string]ServerConfig `yaml:"servers"`
	Search          SearchConfig            `yaml:"search"`
	Web             WebConfig               `yaml:"web"`
	News            NewsConfig              `yaml:"news"`
	Log             LogConfig               `yaml:"log"`
	Concurrency     ConcurrencyConfig       `yaml:"concurrency"`
	DB              DBConfig                `yaml:"db"`
	Metrics         MetricsConfig           `yaml:"metrics"`
	ShutdownTimeout time.Duration           `yaml:"shutdown_timeout"`
	SessionTimeout  time.Duration           `yaml:"session_close_timeout"`
	ConnectTimeout  time.Duration           `yaml:"session_connect_timeout"`

	// Credentials 来自环境变量，不写入配置文件
	Credentials Credentials `yaml:"-"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	Provider  string `yaml:"provider"` // anthropic / openai / gemini
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// KeywordsConfig 关键词存储配置
type KeywordsConfig struct {
	Dir         string   `yaml:"dir"`
	ActiveLimit int      `yaml:"active_limit"`
	Seeds       []string `yaml:"seeds"`
}

// ReportConfig 报告输出配置
type ReportConfig struct {
	Dir    string       `yaml:"dir"`
	HTML   bool         `yaml:"html"`
	Notion NotionConfig `yaml:"notion"`
	Table  TableConfig  `yaml:"table"`
}

// NotionConfig 文档镜像配置
type NotionConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Server       string `yaml:"server"`
	ParentPageID string `yaml:"parent_page_id"`
}

// TableConfig 表格镜像配置
type TableConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig 工具服务进程配置
type ServerConfig struct {
	Command  string            `yaml:"command"`
	Args     []string          `yaml:"args"`
	Env      map[string]string `yaml:"env"`
	Requires []string          `yaml:"requires"`
	Tools    []string          `yaml:"tools"`
	Disabled bool              `yaml:"disabled"`
}

// PrimaryTool 返回首选工具名，未配置时返回 fallback
func (s ServerConfig) PrimaryTool(fallback string) string {
	if len(s.Tools) > 0 && s.Tools[0] != "" {
		return s.Tools[0]
	}
	return fallback
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider string        `yaml:"provider"`
	Tavily   TavilyConfig  `yaml:"tavily"`
	SearXNG  SearXNGConfig `yaml:"searxng"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// WebConfig 网页来源配置
type WebConfig struct {
	EnrichContent bool `yaml:"enrich_content"`
	EnrichTimeout int  `yaml:"enrich_timeout"`
}

// NewsConfig 资讯聚合来源配置
type NewsConfig struct {
	FeedURL string `yaml:"feed_url"` // 含一个 %s 占位符
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS   int `yaml:"qps"`
	RPM   int `yaml:"rpm"`
	Pairs int `yaml:"pairs"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// MetricsConfig 指标输出配置
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Credentials 外部服务凭据
type Credentials struct {
	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	GeminiAPIKey        string `env:"GEMINI_API_KEY"`
	YouTubeAPIKey       string `env:"YOUTUBE_API_KEY"`
	GitHubToken         string `env:"GITHUB_PERSONAL_ACCESS_TOKEN"`
	SiliconFlowAPIKey   string `env:"SILICONFLOW_API_KEY"`
	NotionAPIKey        string `env:"NOTION_API_KEY"`
	NotionParentPageID  string `env:"NOTION_PARENT_PAGE_ID"`
	TavilyAPIKey        string `env:"TAVILY_API_KEY"`
	LogLevel            string `env:"TREND_RADAR_LOG_LEVEL"`
	ConfigPathOverwrite string `env:"TREND_RADAR_CONFIG"`
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-haiku-4-5",
			MaxTokens: 1000,
		},
		Keywords: KeywordsConfig{
			Dir:         "keywords",
			ActiveLimit: 5,
		},
		Report: ReportConfig{
			Dir: "reports",
			Notion: NotionConfig{
				Enabled: true,
				Server:  "notion",
			},
		},
		Platforms: []string{PlatformWeb, PlatformVideo, PlatformCode, PlatformArxiv, PlatformNews},
		Servers: map[string]ServerConfig{
			PlatformWeb: {
				Command: "one-search-mcp",
				Tools:   []string{"one_search"},
			},
			PlatformVideo: {
				Command:  "npx",
				Args:     []string{"-y", "youtube-data-mcp-server"},
				Env:      map[string]string{"YOUTUBE_API_KEY": "${YOUTUBE_API_KEY}", "YOUTUBE_TRANSCRIPT_LANG": "ja"},
				Requires: []string{"YOUTUBE_API_KEY"},
				Tools:    []string{"searchVideos"},
			},
			PlatformCode: {
				Command:  "npx",
				Args:     []string{"-y", "@modelcontextprotocol/server-github"},
				Env:      map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": "${GITHUB_PERSONAL_ACCESS_TOKEN}"},
				Requires: []string{"GITHUB_PERSONAL_ACCESS_TOKEN"},
				Tools:    []string{"search_repositories"},
			},
			PlatformArxiv: {
				Command: "npx",
				Args:    []string{"-y", "@langgpt/arxiv-mcp-server@latest"},
				Env:     map[string]string{"SILICONFLOW_API_KEY": "${SILICONFLOW_API_KEY}", "WORK_DIR": "./reports"},
				Tools:   []string{"search_arxiv"},
			},
			PlatformNews: {
				Command: "npx",
				Args:    []string{"-y", "@microagents/server-hackernews"},
				Tools:   []string{"search", "getStories"},
			},
			"notion": {
				Command:  "npx",
				Args:     []string{"@ramidecodes/mcp-server-notion@latest", "-y", "--api-key=${NOTION_API_KEY}"},
				Requires: []string{"NOTION_API_KEY"},
				Tools:    []string{"create-page"},
			},
		},
		Web: WebConfig{EnrichTimeout: 30},
		Log: LogConfig{Level: "info"},
		Concurrency: ConcurrencyConfig{
			QPS:   1,
			RPM:   30,
			Pairs: 1,
		},
		ShutdownTimeout: 10 * time.Second,
		SessionTimeout:  3 * time.Second,
		ConnectTimeout:  60 * time.Second,
	}
}

// LoadConfig 从指定路径加载配置，文件不存在时使用默认配置
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config failed: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config failed: %w", err)
		}
	}

	if err := cfg.loadCredentials(nil); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Load 按环境变量 TREND_RADAR_CONFIG 指定的路径加载配置
func Load() (*Config, error) {
	_ = godotenv.Load()

	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	path := creds.ConfigPathOverwrite
	if path == "" {
		path = DefaultPath
	}
	return LoadConfig(path)
}

// loadCredentials 读取凭据，environ 为 nil 时读取进程环境
func (c *Config) loadCredentials(environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&c.Credentials, opts); err != nil {
		return fmt.Errorf("parsing environment config: %w", err)
	}

	if c.Credentials.LogLevel != "" {
		c.Log.Level = c.Credentials.LogLevel
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = c.Credentials.OpenAIAPIKey
		case "gemini":
			c.LLM.APIKey = c.Credentials.GeminiAPIKey
		default:
			c.LLM.APIKey = c.Credentials.AnthropicAPIKey
		}
	}
	if c.Report.Notion.ParentPageID == "" {
		c.Report.Notion.ParentPageID = c.Credentials.NotionParentPageID
	}
	if c.Search.Tavily.APIKey == "" {
		c.Search.Tavily.APIKey = c.Credentials.TavilyAPIKey
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Keywords.Dir == "" {
		c.Keywords.Dir = "keywords"
	}
	if c.Keywords.ActiveLimit <= 0 {
		c.Keywords.ActiveLimit = 5
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "reports"
	}
	if c.Report.Notion.Server == "" {
		c.Report.Notion.Server = "notion"
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 30
	}
	if c.Concurrency.Pairs <= 0 {
		c.Concurrency.Pairs = 1
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 3 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 60 * time.Second
	}
}

// EnabledServers 返回需要连接的工具服务：启用的研究平台以及开启的文档镜像
//
// 缺少必需凭据的服务会被跳过，返回值中 skipped 记录跳过原因。
func (c *Config) EnabledServers(lookup func(string) (string, bool)) (enabled map[string]ServerConfig, skipped map[string]string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	enabled = make(map[string]ServerConfig)
	skipped = make(map[string]string)

	names := append([]string{}, c.Platforms...)
	if c.Report.Notion.Enabled {
		names = append(names, c.Report.Notion.Server)
	}

	for _, name := range names {
		srv, ok := c.Servers[name]
		if !ok {
			skipped[name] = "no server configured"
			continue
		}
		if srv.Disabled {
			skipped[name] = "disabled"
			continue
		}
		if missing := missingEnv(srv.Requires, lookup); missing != "" {
			skipped[name] = "missing " + missing
			continue
		}
		enabled[name] = srv
	}
	return enabled, skipped
}

// ServerNames 返回排好序的服务名，便于日志输出稳定
func ServerNames(servers map[string]ServerConfig) []string {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func missingEnv(keys []string, lookup func(string) (string, bool)) string {
	for _, key := range keys {
		if v, ok := lookup(key); !ok || v == "" {
			return key
		}
	}
	return ""
}
