package keyword

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// 关键词来源
const (
	SourceSeed       = "seed"
	SourceDiscovered = "discovered"
)

// 执行状态
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	masterFile  = "master.json"
	activeFile  = "active.json"
	historyFile = "history.json"

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	// SeedScore 种子关键词的初始分数
	SeedScore = 50
)

// Record 主注册表中的关键词记录
type Record struct {
	Score          int     `json:"score"`
	LastUsed       *string `json:"last_used"`
	Source         string  `json:"source"`
	CreatedDate    string  `json:"created_date"`
	DiscoveredFrom *string `json:"discovered_from,omitempty"`
}

// Execution 单日执行记录
type Execution struct {
	Keywords         []string `json:"keywords"`
	ExecutionTime    string   `json:"execution_time"`
	Status           string   `json:"status"`
	NewKeywordsFound int      `json:"new_keywords_found"`
}

// Master 主注册表，保持插入顺序
type Master = orderedmap.OrderedMap[string, Record]

// History 执行历史，按日期键保存
type History = orderedmap.OrderedMap[string, Execution]

// Store 基于 JSON 文件的关键词存储
//
// 目录下维护 master.json、active.json、history.json 三个文件，
// 文件不存在时按空集合处理。
type Store struct {
	dir string
	now func() time.Time
}

// Option Store 可选项
type Option func(*Store)

// WithClock 注入时钟，便于测试
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore 创建关键词存储
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir 返回存储目录
func (s *Store) Dir() string { return s.dir }

// LoadMaster 读取主注册表
func (s *Store) LoadMaster() (*Master, error) {
	master := orderedmap.New[string, Record]()
	if err := s.readJSON(masterFile, master); err != nil {
		return nil, err
	}
	return master, nil
}

// LoadActive 读取当前活跃关键词
func (s *Store) LoadActive() ([]string, error) {
	var active []string
	if err := s.readJSON(activeFile, &active); err != nil {
		return nil, err
	}
	if active == nil {
		active = []string{}
	}
	return active, nil
}

// LoadHistory 读取执行历史
func (s *Store) LoadHistory() (*History, error) {
	history := orderedmap.New[string, Execution]()
	if err := s.readJSON(historyFile, history); err != nil {
		return nil, err
	}
	return history, nil
}

// RefreshActive 按分数降序取前 limit 个关键词作为新的活跃集合并持久化
//
// 同分按注册表顺序排列。
func (s *Store) RefreshActive(limit int) ([]string, error) {
	active, err := s.TopKeywords(limit)
	if err != nil {
		return nil, err
	}
	if err := s.writeJSON(activeFile, active); err != nil {
		return nil, err
	}
	return active, nil
}

// TopKeywords 返回分数最高的 limit 个关键词，不修改活跃集合
func (s *Store) TopKeywords(limit int) ([]string, error) {
	master, err := s.LoadMaster()
	if err != nil {
		return nil, err
	}

	type entry struct {
		term  string
		score int
	}
	entries := make([]entry, 0, master.Len())
	for pair := master.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, entry{term: pair.Key, score: pair.Value.Score})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].score > entries[j].score })

	if limit < 0 {
		limit = 0
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	terms := make([]string, 0, len(entries))
	for _, e := range entries {
		terms = append(terms, e.term)
	}
	return terms, nil
}

// AddNewKeyword 新增关键词，已存在时返回 false 且不覆盖原记录
func (s *Store) AddNewKeyword(term string, score int, source, discoveredFrom string) (bool, error) {
	master, err := s.LoadMaster()
	if err != nil {
		return false, err
	}
	if _, ok := master.Get(term); ok {
		return false, nil
	}

	rec := Record{
		Score:       Clamp(score),
		Source:      source,
		CreatedDate: s.today(),
	}
	if discoveredFrom != "" {
		rec.DiscoveredFrom = &discoveredFrom
	}
	master.Set(term, rec)

	if err := s.writeJSON(masterFile, master); err != nil {
		return false, err
	}
	return true, nil
}

// Seed 写入种子关键词，已存在的跳过，返回新增个数
func (s *Store) Seed(terms []string) (int, error) {
	master, err := s.LoadMaster()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, term := range terms {
		if term == "" {
			continue
		}
		if _, ok := master.Get(term); ok {
			continue
		}
		master.Set(term, Record{Score: SeedScore, Source: SourceSeed, CreatedDate: s.today()})
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.writeJSON(masterFile, master); err != nil {
		return 0, err
	}
	return added, nil
}

// UpdateScore 更新已有关键词的分数，返回关键词是否存在
func (s *Store) UpdateScore(term string, score int) (bool, error) {
	master, err := s.LoadMaster()
	if err != nil {
		return false, err
	}
	rec, ok := master.Get(term)
	if !ok {
		return false, nil
	}
	rec.Score = Clamp(score)
	master.Set(term, rec)
	if err := s.writeJSON(masterFile, master); err != nil {
		return false, err
	}
	return true, nil
}

// MarkUsed 将关键词的 last_used 设置为今天，未知关键词忽略
func (s *Store) MarkUsed(terms []string) error {
	master, err := s.LoadMaster()
	if err != nil {
		return err
	}

	today := s.today()
	changed := false
	for _, term := range terms {
		rec, ok := master.Get(term)
		if !ok {
			continue
		}
		if rec.LastUsed != nil && *rec.LastUsed == today {
			continue
		}
		rec.LastUsed = &today
		master.Set(term, rec)
		changed = true
	}
	if !changed {
		return nil
	}
	return s.writeJSON(masterFile, master)
}

// RecordExecution 记录当日执行结果，同一天重复执行会覆盖
func (s *Store) RecordExecution(terms []string, status string, newCount int) error {
	history, err := s.LoadHistory()
	if err != nil {
		return err
	}
	if terms == nil {
		terms = []string{}
	}

	now := s.now()
	history.Set(now.Format(dateLayout), Execution{
		Keywords:         terms,
		ExecutionTime:    now.Format(timeLayout),
		Status:           status,
		NewKeywordsFound: newCount,
	})
	return s.writeJSON(historyFile, history)
}

// Clamp 将分数限制在 [0,100]
func Clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

func (s *Store) today() string {
	return s.now().Format(dateLayout)
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s failed: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s failed: %w", name, err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create keyword dir failed: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s failed: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s failed: %w", name, err)
	}
	return nil
}
