package debug

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetEnabled(false)
	Log("hidden %d", 1)
	LogTiming("op", time.Millisecond)
	assert.Empty(t, buf.String())
}

func TestLogEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetEnabled(true)
	SetOutput(&buf)
	defer SetEnabled(false)

	Log("refresh %s", "tree")
	LogTiming("poll", 2*time.Millisecond)
	assert.Contains(t, buf.String(), "[DEVLENS] ")
	assert.Contains(t, buf.String(), "refresh tree")
	assert.Contains(t, buf.String(), "poll took 2ms")
}

func TestWarnReachesSinkWhenDisabled(t *testing.T) {
	var got []string
	SetEnabled(false)
	SetWarnSink(func(s string) { got = append(got, s) })
	defer SetWarnSink(nil)

	Warn("capability %s failed", "stores")
	assert.Equal(t, []string{"capability stores failed"}, got)
}
