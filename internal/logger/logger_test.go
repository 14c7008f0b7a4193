package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New(level)
	l.out = log.New(buf, "", 0)
	return l, buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := captureLogger(Warn)

	l.Debugf("hidden %d", 1)
	l.Infof("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.Errorf("shown %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 3")
	assert.Contains(t, out, "[ERROR] shown 4")
}

func TestDebugLevelShowsEverything(t *testing.T) {
	l, buf := captureLogger(Debug)

	l.Debugf("a")
	l.Infof("b")

	lines := strings.Count(buf.String(), "\n")
	assert.Equal(t, 2, lines)
}

func TestForRankTagsMessages(t *testing.T) {
	l, buf := captureLogger(Info)

	l.ForRank(3).Warnf("atom out-ran the exchange")
	l.Infof("driver message")

	out := buf.String()
	assert.Contains(t, out, "[WARN] rank 3: atom out-ran the exchange")
	assert.Contains(t, out, "[INFO] driver message")
	assert.NotContains(t, out, "rank -1")
}

func TestDerivedLoggerSharesSinkAndLevel(t *testing.T) {
	l, buf := captureLogger(Warn)

	l.ForRank(0).Infof("filtered on the child too")

	assert.Empty(t, buf.String())
}
