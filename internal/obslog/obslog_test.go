package obslog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogsJSONWithMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, logiface.LevelInformational)
	require.NotNil(t, log)

	log.Info().Str("thread", "tid-1").Log("started")

	out := buf.String()
	assert.Contains(t, out, `"msg":"started"`)
	assert.Contains(t, out, `"thread":"tid-1"`)
}

func TestThrottleAllowsWithinBudgetAndDropsOverBudget(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, logiface.LevelDebug)
	th := NewThrottle(log, map[time.Duration]int{time.Minute: 2})

	th.Debug("tick", "first", nil)
	th.Debug("tick", "second", nil)
	th.Debug("tick", "third", nil)

	lines := strings.Count(strings.TrimRight(buf.String(), "\n"), "\n") + 1
	if buf.Len() == 0 {
		lines = 0
	}
	assert.Equal(t, 2, lines)
}

func TestThrottleWarningLogsAtWarningLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, logiface.LevelDebug)
	th := NewThrottle(log, map[time.Duration]int{time.Minute: 2})

	th.Warning("clamp", "value out of range", func(b *logiface.Builder[*stumpy.Event]) {
		b.Field("value", 42)
	})

	out := buf.String()
	assert.Contains(t, out, `"msg":"value out of range"`)
	assert.Contains(t, out, `"level":"warning"`)
	assert.Contains(t, out, `"value":42`)
}

func TestThrottleWarningDropsOverBudget(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, logiface.LevelDebug)
	th := NewThrottle(log, map[time.Duration]int{time.Minute: 1})

	th.Warning("clamp", "first", nil)
	th.Warning("clamp", "second", nil)

	lines := strings.Count(strings.TrimRight(buf.String(), "\n"), "\n") + 1
	if buf.Len() == 0 {
		lines = 0
	}
	assert.Equal(t, 1, lines)
}

func TestThrottleNilSafe(t *testing.T) {
	var th *Throttle
	assert.True(t, th.Allow("anything"))
	assert.NotPanics(t, func() {
		th.Debug("anything", "msg", nil)
	})
}
