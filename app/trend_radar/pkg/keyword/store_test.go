package keyword

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(day string) func() time.Time {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", day+" 09:30:00", time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "keywords"), WithClock(fixedClock("2025-06-01")))
}

func TestMissingFilesReadAsEmpty(t *testing.T) {
	s := newTestStore(t)

	active, err := s.LoadActive()
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.NotNil(t, active)

	master, err := s.LoadMaster()
	require.NoError(t, err)
	assert.Equal(t, 0, master.Len())

	history, err := s.LoadHistory()
	require.NoError(t, err)
	assert.Equal(t, 0, history.Len())
}

func TestAddNewKeywordDoesNotOverwrite(t *testing.T) {
	s := newTestStore(t)

	added, err := s.AddNewKeyword("RAG", 70, SourceDiscovered, "LLM")
	require.NoError(t, err)
	assert.True(t, added)

	s.now = fixedClock("2025-07-01")
	added, err = s.AddNewKeyword("RAG", 10, SourceSeed, "other")
	require.NoError(t, err)
	assert.False(t, added)

	master, err := s.LoadMaster()
	require.NoError(t, err)
	rec, ok := master.Get("RAG")
	require.True(t, ok)
	assert.Equal(t, 70, rec.Score)
	assert.Equal(t, SourceDiscovered, rec.Source)
	assert.Equal(t, "2025-06-01", rec.CreatedDate)
	require.NotNil(t, rec.DiscoveredFrom)
	assert.Equal(t, "LLM", *rec.DiscoveredFrom)
	assert.Nil(t, rec.LastUsed)
}

func TestScoresAreClamped(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddNewKeyword("hot", 250, SourceDiscovered, "")
	require.NoError(t, err)
	_, err = s.AddNewKeyword("cold", -4, SourceDiscovered, "")
	require.NoError(t, err)
	ok, err := s.UpdateScore("cold", 101)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateScore("unknown", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	master, err := s.LoadMaster()
	require.NoError(t, err)
	for pair := master.Oldest(); pair != nil; pair = pair.Next() {
		assert.GreaterOrEqual(t, pair.Value.Score, 0, pair.Key)
		assert.LessOrEqual(t, pair.Value.Score, 100, pair.Key)
	}
	assert.Equal(t, 100, master.Value("hot").Score)
	assert.Equal(t, 100, master.Value("cold").Score)
}

func TestRefreshActiveOrdersByScore(t *testing.T) {
	s := newTestStore(t)
	for _, kw := range []struct {
		term  string
		score int
	}{
		{"a", 50}, {"b", 80}, {"c", 50}, {"d", 90}, {"e", 10},
	} {
		_, err := s.AddNewKeyword(kw.term, kw.score, SourceDiscovered, "")
		require.NoError(t, err)
	}

	active, err := s.RefreshActive(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a"}, active)

	loaded, err := s.LoadActive()
	require.NoError(t, err)
	assert.Equal(t, active, loaded)

	active, err = s.RefreshActive(10)
	require.NoError(t, err)
	// 同分保持注册表顺序
	assert.Equal(t, []string{"d", "b", "a", "c", "e"}, active)
}

func TestRefreshActiveEmptyRegistry(t *testing.T) {
	s := newTestStore(t)

	active, err := s.RefreshActive(5)
	require.NoError(t, err)
	assert.Empty(t, active)

	data, err := os.ReadFile(filepath.Join(s.Dir(), activeFile))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestMarkUsedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddNewKeyword("LLM", 60, SourceSeed, "")
	require.NoError(t, err)

	require.NoError(t, s.MarkUsed([]string{"LLM", "ghost"}))
	first, err := os.ReadFile(filepath.Join(s.Dir(), masterFile))
	require.NoError(t, err)

	require.NoError(t, s.MarkUsed([]string{"LLM", "ghost"}))
	second, err := os.ReadFile(filepath.Join(s.Dir(), masterFile))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))

	master, err := s.LoadMaster()
	require.NoError(t, err)
	rec := master.Value("LLM")
	require.NotNil(t, rec.LastUsed)
	assert.Equal(t, "2025-06-01", *rec.LastUsed)
	_, ghost := master.Get("ghost")
	assert.False(t, ghost)
}

func TestSeed(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddNewKeyword("LLM", 90, SourceDiscovered, "")
	require.NoError(t, err)

	added, err := s.Seed([]string{"LLM", "生成AI", "", "RAG"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	master, err := s.LoadMaster()
	require.NoError(t, err)
	assert.Equal(t, 90, master.Value("LLM").Score)
	assert.Equal(t, SeedScore, master.Value("生成AI").Score)
	assert.Equal(t, SourceSeed, master.Value("RAG").Source)
}

func TestMasterPreservesNonASCII(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddNewKeyword("大規模言語モデル", 55, SourceDiscovered, "<LLM & co>")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Dir(), masterFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"大規模言語モデル"`)
}

func TestRecordExecutionOverwritesSameDay(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordExecution([]string{"LLM"}, StatusFailed, 0))
	require.NoError(t, s.RecordExecution([]string{"LLM", "RAG"}, StatusCompleted, 4))
	s.now = fixedClock("2025-06-02")
	require.NoError(t, s.RecordExecution(nil, StatusCompleted, 0))

	history, err := s.LoadHistory()
	require.NoError(t, err)
	require.Equal(t, 2, history.Len())

	first := history.Oldest()
	assert.Equal(t, "2025-06-01", first.Key)
	assert.Equal(t, Execution{
		Keywords:         []string{"LLM", "RAG"},
		ExecutionTime:    "09:30:00",
		Status:           StatusCompleted,
		NewKeywordsFound: 4,
	}, first.Value)
	assert.Equal(t, []string{}, first.Next().Value.Keywords)
}

func TestTopKeywordsDoesNotTouchActive(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddNewKeyword("x", 1, SourceDiscovered, "")
	require.NoError(t, err)

	top, err := s.TopKeywords(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, top)

	_, err = os.Stat(filepath.Join(s.Dir(), activeFile))
	assert.True(t, os.IsNotExist(err))
}
