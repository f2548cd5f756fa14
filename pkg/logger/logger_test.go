package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zap.AtomicLevel) *observer.ObservedLogs {
	t.Helper()
	core, recorded := observer.New(level)
	t.Cleanup(Replace(zap.New(core)))
	return recorded
}

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(Replace(zap.NewNop()))

	require.NoError(t, Init(Options{Level: "debug", Service: "agentdesk"}))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init(Options{Format: "console"}))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel))
	require.True(t, Logger().Core().Enabled(zap.InfoLevel))
}

func TestInitRejectsUnknownSettings(t *testing.T) {
	t.Cleanup(Replace(zap.NewNop()))

	require.Error(t, Init(Options{Level: "loud"}))
	require.ErrorContains(t, Init(Options{Format: "xml"}), `unknown format "xml"`)
}

func TestReplaceRestoresPrevious(t *testing.T) {
	first := zap.NewExample()
	restoreFirst := Replace(first)
	defer restoreFirst()

	restore := Replace(nil)
	require.NotSame(t, first, Logger())
	restore()
	require.Same(t, first, Logger())
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	recorded := observe(t, zap.NewAtomicLevelAt(zap.InfoLevel))

	WithModule("agents").Info("module test")

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.Equal(t, "agents", entries[0].ContextMap()["module"])
}

func TestSecurityEventTagsEntry(t *testing.T) {
	recorded := observe(t, zap.NewAtomicLevelAt(zap.InfoLevel))

	SecurityEvent(nil, "agent.locked", zap.String("agent_id", "a-1"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	require.Equal(t, "agent.locked", ctx["event"])
	require.Equal(t, true, ctx["security"])
	require.Equal(t, "a-1", ctx["agent_id"])
	require.Equal(t, zap.WarnLevel, entries[0].Level)
}
