package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWriter("director", &buf)
	l.SetLevels(INFO, ERROR)

	l.Debug("скрыто %d", 1)
	l.Info("волна %d началась", 3)
	l.Error("сбой: %v", "нет фабрики")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[INFO] [director] волна 3 началась")
	assert.Contains(t, out, "[ERROR] [director] сбой: нет фабрики")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("что-то"))
}

func TestManagerReusesComponentLoggers(t *testing.T) {
	SetLogDir("")
	lm := NewLoggerManager()

	a, err := lm.Open(Spawner)
	require.NoError(t, err)
	assert.Same(t, a, lm.Get(Spawner))
	assert.Equal(t, "spawner", a.Component())

	lm.Get(Director)
	assert.Equal(t, []Component{Director, Spawner}, lm.Opened())

	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.Opened())
}

func TestManagerLevelsReachLaterLoggers(t *testing.T) {
	SetLogDir("")
	lm := NewLoggerManager()
	early := lm.Get(Director)

	lm.SetLevels(WARN, ERROR)
	late := lm.Get(Events)

	for _, l := range []*Logger{early, late} {
		var buf bytes.Buffer
		l.consoleLogger.SetOutput(&buf)
		l.Info("волна %d", 1)
		l.Warn("мало акторов")
		assert.NotContains(t, buf.String(), "волна 1")
		assert.Contains(t, buf.String(), "мало акторов")
	}
}

func TestEveryComponentIsUnique(t *testing.T) {
	seen := make(map[Component]bool)
	for _, c := range Components {
		assert.False(t, seen[c], "повтор %s", c)
		seen[c] = true
	}
	assert.Len(t, seen, 6)
}

func TestFileLoggerWritesToDir(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("")

	l, err := NewLogger("runstats")
	require.NoError(t, err)
	l.Debug("сохранено %d забегов", 2)
	require.NoError(t, l.Close())
	require.NotNil(t, l)
	assert.True(t, strings.HasPrefix(l.Component(), "runstats"))
}
