package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "error", Status(errors.New("boom")))
}

func TestWriteTextfile(t *testing.T) {
	before := testutil.ToFloat64(ToolCalls.WithLabelValues("web", "one_search", "ok"))
	ToolCalls.WithLabelValues("web", "one_search", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ToolCalls.WithLabelValues("web", "one_search", "ok")))

	path := filepath.Join(t.TempDir(), "out", "trend_radar.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `trend_radar_tool_calls_total{source="web",status="ok",tool="one_search"}`)
}

func TestWriteTextfileDisabled(t *testing.T) {
	assert.NoError(t, WriteTextfile(""))
}
