package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_NamesChildByCategory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core))
	t.Cleanup(func() { SetRoot(nil) })

	Get(CategoryScenario).Info("phase", zap.String("to", "act"))
	Browser().Debug("page opened")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "scenario", entries[0].LoggerName)
	assert.Equal(t, "act", entries[0].ContextMap()["to"])
	assert.Equal(t, "browser", entries[1].LoggerName)
}

func TestGet_CachesLoggers(t *testing.T) {
	SetRoot(zap.NewNop())
	t.Cleanup(func() { SetRoot(nil) })

	assert.Same(t, Get(CategoryFixture), Get(CategoryFixture))
}

func TestSetRoot_SilencesDisabledCategories(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), CategoryHuman)
	t.Cleanup(func() { SetRoot(nil) })

	Get(CategoryHuman).Info("keystroke")
	Get(CategoryFixture).Info("written")

	require.Len(t, logs.All(), 1)
	assert.Equal(t, "fixture", logs.All()[0].LoggerName)
}

func TestSetRoot_ResetsCache(t *testing.T) {
	SetRoot(zap.NewNop())
	before := Get(CategoryReport)

	core, logs := observer.New(zapcore.InfoLevel)
	SetRoot(zap.New(core))
	t.Cleanup(func() { SetRoot(nil) })

	after := Get(CategoryReport)
	assert.NotSame(t, before, after)
	after.Info("written")
	assert.Equal(t, 1, logs.Len())
}

func TestBuild(t *testing.T) {
	logger, err := Build(Options{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	verbose, err := Build(Options{Level: "error", Verbose: true})
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(zapcore.DebugLevel))

	_, err = Build(Options{Level: "loud"})
	require.Error(t, err)
}
