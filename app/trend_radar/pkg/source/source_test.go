package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/toolsession"
)

var fixedNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type invocation struct {
	source string
	tool   string
	args   map[string]any
}

type fakeInvoker struct {
	available map[string]bool
	handle    func(source, tool string, args map[string]any) (*toolsession.Payload, error)
	calls     []invocation
}

func (f *fakeInvoker) Available(source string) bool { return f.available[source] }

func (f *fakeInvoker) Invoke(_ context.Context, source, tool string, args map[string]any) (*toolsession.Payload, error) {
	f.calls = append(f.calls, invocation{source: source, tool: tool, args: args})
	if f.handle == nil {
		return nil, nil
	}
	return f.handle(source, tool, args)
}

func textPayload(s string) *toolsession.Payload {
	return &toolsession.Payload{Texts: []string{s}}
}

type fakeSearcher struct {
	resp *search.Response
	err  error
	got  *search.Request
}

func (f *fakeSearcher) Search(_ context.Context, req *search.Request) (*search.Response, error) {
	f.got = req
	return f.resp, f.err
}

func newAdapter(t *testing.T, platform string, deps Deps) Adapter {
	t.Helper()
	deps.Now = func() time.Time { return fixedNow }
	a, err := New(platform, deps)
	require.NoError(t, err)
	return a
}

func TestNewAll(t *testing.T) {
	adapters, err := NewAll([]string{"news", "web", "code"}, Deps{})
	require.NoError(t, err)
	require.Len(t, adapters, 3)
	assert.Equal(t, model.PlatformNews, adapters[0].Platform())
	assert.Equal(t, model.PlatformCode, adapters[2].Platform())

	_, err = NewAll([]string{"web", "radio"}, Deps{})
	assert.EqualError(t, err, "unknown platform: radio")
}

func TestWebAdapterViaTool(t *testing.T) {
	inv := &fakeInvoker{
		available: map[string]bool{"web": true},
		handle: func(_, _ string, _ map[string]any) (*toolsession.Payload, error) {
			return &toolsession.Payload{Structured: map[string]any{"results": []any{
				map[string]any{"title": "A", "url": "https://a.example/x", "snippet": "<b>bold</b> text"},
				map[string]any{"title": "no url"},
			}}}, nil
		},
	}
	a := newAdapter(t, "web", Deps{})

	res := a.Research(context.Background(), inv, "生成AI")
	require.Empty(t, res.Error)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "bold text", res.Results[0].Snippet)
	assert.Equal(t, "a.example", res.Results[0].Source)
	assert.Equal(t, 1.0, res.EngagementMetrics["search_count"])
	assert.Equal(t, fixedNow, res.Timestamp)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, "one_search", inv.calls[0].tool)
	assert.Equal(t, "生成AI 日本語", inv.calls[0].args["query"])
}

func TestWebAdapterSearcherFallback(t *testing.T) {
	searcher := &fakeSearcher{resp: &search.Response{Results: []search.Result{
		{Title: "B", URL: "https://b.example/post", Content: "body"},
		{Title: "", URL: "https://skip.example"},
	}}}
	a := newAdapter(t, "web", Deps{Searcher: searcher})

	res := a.Research(context.Background(), &fakeInvoker{}, "エージェント")
	require.Empty(t, res.Error)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "b.example", res.Results[0].Source)
	assert.Equal(t, "ja", searcher.got.Language)
}

func TestWebAdapterFailures(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		res := newAdapter(t, "web", Deps{}).Research(context.Background(), &fakeInvoker{}, "x")
		assert.Equal(t, "web not connected", res.Error)
		assert.NotNil(t, res.Results)
	})

	t.Run("tool error", func(t *testing.T) {
		inv := &fakeInvoker{
			available: map[string]bool{"web": true},
			handle: func(_, _ string, _ map[string]any) (*toolsession.Payload, error) {
				return nil, errors.New("call web.one_search failed: boom")
			},
		}
		res := newAdapter(t, "web", Deps{}).Research(context.Background(), inv, "x")
		assert.Contains(t, res.Error, "boom")
	})

	t.Run("searcher error after empty tool", func(t *testing.T) {
		inv := &fakeInvoker{available: map[string]bool{"web": true}}
		searcher := &fakeSearcher{err: search.ErrNotConfigured}
		res := newAdapter(t, "web", Deps{Searcher: searcher}).Research(context.Background(), inv, "x")
		assert.Equal(t, search.ErrNotConfigured.Error(), res.Error)
	})
}

func TestVideoAdapter(t *testing.T) {
	inv := &fakeInvoker{
		available: map[string]bool{"video": true},
		handle: func(_, _ string, _ map[string]any) (*toolsession.Payload, error) {
			return &toolsession.Payload{Structured: map[string]any{"items": []any{
				map[string]any{
					"id": map[string]any{"videoId": "abc"},
					"snippet": map[string]any{
						"title":        "LLM入門 解説",
						"description":  "わかりやすく説明します",
						"publishedAt":  "2025-05-29T00:00:00Z",
						"channelTitle": "AIチャンネル",
					},
				},
				map[string]any{"id": "def", "title": "Conference talk on agents"},
			}}}, nil
		},
	}

	res := newAdapter(t, "video", Deps{}).Research(context.Background(), inv, "LLM")
	require.Empty(t, res.Error)
	require.Len(t, res.Results, 2)

	first := res.Results[0]
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", first.URL)
	assert.Equal(t, "解説動画", first.ContentType)
	assert.Equal(t, "ja", first.Language)
	assert.Equal(t, 3, first.DaysOld)
	assert.True(t, first.IsRecent)
	assert.Equal(t, 40.0, first.TrendScore)

	second := res.Results[1]
	assert.Equal(t, "def", second.ID)
	assert.Equal(t, "カンファレンス", second.ContentType)
	assert.Equal(t, "en", second.Language)
	assert.Zero(t, second.TrendScore)

	assert.Equal(t, 1.0, res.EngagementMetrics["video_count"])
	assert.Equal(t, 2.0, res.EngagementMetrics["total_videos"])
}

func TestVideoAdapterNotConnected(t *testing.T) {
	res := newAdapter(t, "video", Deps{}).Research(context.Background(), &fakeInvoker{}, "LLM")
	assert.Equal(t, "video not connected", res.Error)
}

func TestPlaceholderMajorityResponses(t *testing.T) {
	placeholderVideos := map[string]any{"videos": []any{
		map[string]any{"id": "a1", "title": "undefined"},
		map[string]any{"id": "a2", "title": "undefined"},
		map[string]any{"id": "a3", "title": "Agents 解説"},
	}}
	placeholderPages := map[string]any{"results": []any{
		map[string]any{"title": "undefined", "url": "https://a.example/1"},
		map[string]any{"url": "https://a.example/2"},
		map[string]any{"title": "ok", "url": "https://a.example/3"},
	}}

	tests := []struct {
		name      string
		platform  string
		payload   map[string]any
		searcher  *fakeSearcher
		wantError string
		wantItems int
	}{
		{name: "video placeholders", platform: "video", payload: placeholderVideos, wantError: ErrUnusable.Error()},
		{
			name:     "video nested snippet stays usable",
			platform: "video",
			payload: map[string]any{"items": []any{
				map[string]any{"id": map[string]any{"videoId": "v1"}, "snippet": map[string]any{"title": "one"}},
				map[string]any{"id": map[string]any{"videoId": "v2"}, "snippet": map[string]any{"title": "undefined"}},
				map[string]any{"id": map[string]any{"videoId": "v3"}, "snippet": map[string]any{"title": "three"}},
			}},
			wantItems: 2,
		},
		{name: "web placeholders without fallback", platform: "web", payload: placeholderPages, wantError: ErrUnusable.Error()},
		{
			name:     "web placeholders use searcher",
			platform: "web",
			payload:  placeholderPages,
			searcher: &fakeSearcher{resp: &search.Response{Results: []search.Result{
				{Title: "B", URL: "https://b.example/post"},
			}}},
			wantItems: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvoker{
				available: map[string]bool{tt.platform: true},
				handle: func(_, _ string, _ map[string]any) (*toolsession.Payload, error) {
					return &toolsession.Payload{Structured: tt.payload}, nil
				},
			}
			deps := Deps{}
			if tt.searcher != nil {
				deps.Searcher = tt.searcher
			}

			res := newAdapter(t, tt.platform, deps).Research(context.Background(), inv, "agents")
			assert.Equal(t, tt.wantError, res.Error)
			require.Len(t, res.Results, tt.wantItems)
			for _, it := range res.Results {
				assert.NotEmpty(t, it.Title)
			}
		})
	}
}

func TestCodeAdapter(t *testing.T) {
	const repos = `[
  {"full_name":"a/fast","name":"fast","owner":{"login":"a"},"stargazers_count":730,"forks_count":10,
   "language":"Go","created_at":"2025-05-02T00:00:00Z","html_url":"https://github.com/a/fast"},
  {"name":"slow","owner":"b","stars":60,"forks":2,"language":"Go","created_at":"2023-06-01T00:00:00Z"}
]`
	inv := &fakeInvoker{
		available: map[string]bool{"code": true},
		handle: func(_, _ string, _ map[string]any) (*toolsession.Payload, error) {
			return textPayload(repos), nil
		},
	}
	a := newAdapter(t, "code", Deps{Servers: map[string]config.ServerConfig{
		"code": {Tools: []string{"find_repos"}},
	}})

	res := a.Research(context.Background(), inv, "agents")
	require.Empty(t, res.Error)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "find_repos", inv.calls[0].tool)
	assert.Equal(t, "agents followers:>1000 stars:>50", inv.calls[0].args["query"])

	fast, slow := res.Results[0], res.Results[1]
	assert.Equal(t, 30, fast.DaysOld)
	assert.Equal(t, 100.0, fast.TrendScore)
	assert.True(t, fast.IsTrending)
	assert.True(t, fast.IsAccelerating)

	assert.Equal(t, "b/slow", slow.Title)
	assert.Equal(t, "https://github.com/b/slow", slow.URL)
	assert.InDelta(t, 1.42, slow.TrendScore, 0.001)
	assert.False(t, slow.IsTrending)
	assert.False(t, slow.IsAccelerating)

	m := res.EngagementMetrics
	assert.Equal(t, 2.0, m["repo_count"])
	assert.Equal(t, 790.0, m["total_stars"])
	assert.Equal(t, 395.0, m["avg_stars"])
	assert.Equal(t, 1.0, m["trending_repos_count"])
	assert.Equal(t, 2.0, m["top_languages.Go"])
}

func TestCodeAdapterEmptyAndUnusable(t *testing.T) {
	reply := ""
	inv := &fakeInvoker{
		available: map[string]bool{"code": true},
		handle: func(_, _ string, _ map[string]any) (*toolsession.Payload, error) {
			return textPayload(reply), nil
		},
	}
	a := newAdapter(t, "code", Deps{})

	res := a.Research(context.Background(), inv, "agents")
	assert.Empty(t, res.Error)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0.0, res.EngagementMetrics["repo_count"])

	reply = `[{"name":"x","stargazers_count":"undefined"},{"name":"y","stars":null}]`
	res = a.Research(context.Background(), inv, "agents")
	assert.Contains(t, res.Error, "unusable response")
}

func TestCodeTrendScoreBounds(t *testing.T) {
	for _, days := range []int{1, 10, 100, 400, 1000} {
		prev := -1.0
		for _, stars := range []int{0, 10, 100, 1000, 100000} {
			score := codeTrendScore(stars, days, float64(stars)/float64(days))
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
			assert.GreaterOrEqual(t, score, prev, "stars=%d days=%d", stars, days)
			prev = score
		}
	}
}

func TestArxivAdapterBroadensOnce(t *testing.T) {
	inv := &fakeInvoker{
		available: map[string]bool{"arxiv": true},
		handle: func(_, _ string, args map[string]any) (*toolsession.Payload, error) {
			if args["query"] == "multi agent systems" {
				return textPayload("找到 0 篇相关论文"), nil
			}
			return &toolsession.Payload{Structured: map[string]any{"papers": []any{
				map[string]any{
					"title":          "Agents\n  at Scale",
					"arxiv_id":       "2505.00001",
					"published":      "2025-05-20",
					"authors":        []any{"Alice", "Bob"},
					"categories":     []any{"cs.AI"},
					"citation_count": 120.0,
				},
				map[string]any{"title": "No identifier"},
			}}}, nil
		},
	}

	res := newAdapter(t, "arxiv", Deps{}).Research(context.Background(), inv, "multi agent systems")
	require.Empty(t, res.Error)
	require.Len(t, inv.calls, 2)
	assert.Equal(t, "multi agent", inv.calls[1].args["query"])

	require.Len(t, res.Results, 1)
	paper := res.Results[0]
	assert.Equal(t, "Agents at Scale", paper.Title)
	assert.Equal(t, 12, paper.DaysOld)
	assert.Equal(t, 70.0, paper.TrendScore)

	m := res.EngagementMetrics
	assert.Equal(t, 1.0, m["paper_count"])
	assert.Equal(t, 120.0, m["total_citations"])
	assert.Equal(t, 1.0, m["top_categories.cs.AI"])
	assert.Equal(t, 1.0, m["top_authors.Alice"])
}

func TestArxivTrendScoreUndated(t *testing.T) {
	assert.Equal(t, 0.0, arxivTrendScore(0, false, 0, nil))
	assert.Equal(t, 30.0, arxivTrendScore(0, true, 0, nil))
	assert.Equal(t, 15.0, arxivTrendScore(0, false, 0, []string{"math.CO", "cs.LG"}))
}

func TestNewsAdapterFallsBackToTrending(t *testing.T) {
	inv := &fakeInvoker{
		available: map[string]bool{"news": true},
		handle: func(_, tool string, _ map[string]any) (*toolsession.Payload, error) {
			if tool == "search" {
				return textPayload("No stories found matching query"), nil
			}
			return textPayload("1. Agents ship\n   ID: 42\n   Points: 150 | Author: pg | Comments: 60"), nil
		},
	}

	res := newAdapter(t, "news", Deps{}).Research(context.Background(), inv, "agent frameworks")
	require.Empty(t, res.Error)

	var queries []any
	for _, c := range inv.calls {
		queries = append(queries, c.args["query"])
	}
	assert.Equal(t, []any{"agent frameworks", "agent", "frameworks", nil}, queries)
	assert.Equal(t, "getStories", inv.calls[3].tool)

	require.Len(t, res.Results, 1)
	story := res.Results[0]
	assert.Equal(t, "https://news.ycombinator.com/item?id=42", story.URL)
	assert.Equal(t, 3, story.DaysOld)
	assert.Equal(t, 65.0, story.TrendScore)
	assert.Equal(t, 150.0, res.EngagementMetrics["total_score"])
	assert.Equal(t, 1.0, res.EngagementMetrics["top_authors.pg"])
}

func TestNewsAdapterAllStrategiesFail(t *testing.T) {
	inv := &fakeInvoker{
		available: map[string]bool{"news": true},
		handle: func(_, _ string, _ map[string]any) (*toolsession.Payload, error) {
			return nil, errors.New("upstream down")
		},
	}
	res := newAdapter(t, "news", Deps{}).Research(context.Background(), inv, "agents")
	assert.Equal(t, ErrNoResults.Error(), res.Error)
	assert.Empty(t, res.Results)
}

func TestNewsAdapterNotConnected(t *testing.T) {
	res := newAdapter(t, "news", Deps{}).Research(context.Background(), &fakeInvoker{}, "agents")
	assert.Equal(t, "news not connected", res.Error)
}

func TestNewsAdapterFeedFallback(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>feed</title>
<item><title>Agents everywhere</title><link>https://n.example/1</link>
<description>&lt;p&gt;Hello&lt;/p&gt;</description><pubDate>Fri, 30 May 2025 12:00:00 GMT</pubDate></item>
<item><title></title><link>https://n.example/skip</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	a := newAdapter(t, "news", Deps{News: config.NewsConfig{FeedURL: srv.URL + "/rss?q=%s"}})
	res := a.Research(context.Background(), &fakeInvoker{}, "agent frameworks")
	require.Empty(t, res.Error)
	assert.Equal(t, "agent frameworks", gotQuery)

	require.Len(t, res.Results, 1)
	item := res.Results[0]
	assert.Equal(t, "Hello", item.Description)
	assert.Equal(t, 1, item.DaysOld)
	assert.Equal(t, 25.0, item.TrendScore)
}

func TestParseTime(t *testing.T) {
	ts, ok := parseTime(1748736000.0)
	require.True(t, ok)
	assert.True(t, ts.Equal(fixedNow))

	_, ok = parseTime("undefined")
	assert.False(t, ok)
	_, ok = parseTime(0.0)
	assert.False(t, ok)
}
