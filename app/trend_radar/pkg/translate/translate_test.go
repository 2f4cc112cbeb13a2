package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(context.Context, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestFallback(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"生成AI", "generative AI"},
		{"LLM", "large language models"},
		{"生成AIの活用", "generative AI"},
		{"学習", "machine learning"},
		{"quantum computing", "quantum computing"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Fallback(tt.in))
		})
	}
}

func TestToEnglishUsesCompleter(t *testing.T) {
	c := &stubCompleter{reply: "  \"retrieval augmented generation\"\nextra"}
	assert.Equal(t, "retrieval augmented generation", New(c).ToEnglish(context.Background(), "検索拡張生成"))
}

func TestToEnglishFallsBackOnError(t *testing.T) {
	c := &stubCompleter{err: errors.New("429")}
	assert.Equal(t, "deep learning", New(c).ToEnglish(context.Background(), "深層学習"))
	assert.Equal(t, 1, c.calls)
}

func TestToEnglishWithoutCompleter(t *testing.T) {
	assert.Equal(t, "computer vision", New(nil).ToEnglish(context.Background(), "コンピュータビジョン"))
}

func TestBroaden(t *testing.T) {
	tr := New(nil)
	assert.Equal(t, "large language", tr.Broaden(context.Background(), "large language models"))
	assert.Equal(t, "agents", tr.Broaden(context.Background(), "agents"))

	llmTr := New(&stubCompleter{reply: "machine learning"})
	assert.Equal(t, "machine learning", llmTr.Broaden(context.Background(), "sparse mixture of experts"))
}

func TestBroaderTerms(t *testing.T) {
	assert.Equal(t, []string{"AI", "LLM", "agents"},
		New(&stubCompleter{reply: "AI, LLM, agents, robotics"}).BroaderTerms(context.Background(), "agentic RAG"))

	assert.Equal(t, []string{"large", "language", "models"},
		New(nil).BroaderTerms(context.Background(), "large language models of AI"))

	assert.Empty(t, New(nil).BroaderTerms(context.Background(), "RAG"))
}
