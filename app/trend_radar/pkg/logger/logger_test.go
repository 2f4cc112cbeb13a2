package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, logrus.DebugLevel)

	l.WithFields(logrus.Fields{"platform": "web", "count": 3}).Warn("research done")

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "logger_test.go:")
	assert.Contains(t, line, "research done count=3 platform=web\n")
}

func TestInitLoggerCreatesFile(t *testing.T) {
	old := Log
	t.Cleanup(func() { Log = old })

	path := filepath.Join(t.TempDir(), "logs", "run.log")
	require.NoError(t, InitLogger("debug", path))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	assert.FileExists(t, path)
}

func TestInitLoggerBadLevel(t *testing.T) {
	old := Log
	t.Cleanup(func() { Log = old })

	require.NoError(t, InitLogger("loud", ""))
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}
