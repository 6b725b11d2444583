package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordumb/RadicleApp/internal/common/config"
	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/events/bus"
)

func TestProvideDefaultsToMemoryBus(t *testing.T) {
	b, cleanup, err := Provide(&config.Config{}, logger.Nop())
	require.NoError(t, err)
	_, ok := b.(*bus.MemoryEventBus)
	assert.True(t, ok)
	assert.True(t, b.IsConnected())
	cleanup()
	assert.False(t, b.IsConnected())
}

func TestProvideFailsOnUnreachableNATS(t *testing.T) {
	cfg := &config.Config{NATS: config.NATSConfig{URL: "nats://127.0.0.1:1", ClientID: "test"}}
	_, _, err := Provide(cfg, logger.Nop())
	assert.Error(t, err)
}

func TestBuildSubject(t *testing.T) {
	assert.Equal(t, "tree.node.changed.s1", BuildSubject(TreeNodeChanged, "s1"))
	assert.Equal(t, "diff.closed", BuildSubject(DiffClosed, ""))
}
