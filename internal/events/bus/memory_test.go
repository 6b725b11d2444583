package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordumb/RadicleApp/internal/common/logger"
)

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus(logger.Nop())
	defer bus.Close()
	require.True(t, bus.IsConnected())

	received := make(chan *Event, 1)
	sub, err := bus.Subscribe("tree.node.changed", func(_ context.Context, e *Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	event := NewEvent("tree.node.changed", "test", "s1", map[string]interface{}{"path": "src"})
	require.NoError(t, bus.Publish(context.Background(), "tree.node.changed", event))

	got := receive(t, received)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "src", got.Data["path"])
}

func TestMemoryEventBus_Wildcards(t *testing.T) {
	bus := NewMemoryEventBus(logger.Nop())
	defer bus.Close()

	tail := make(chan *Event, 4)
	single := make(chan *Event, 4)
	_, err := bus.Subscribe("diff.>", func(_ context.Context, e *Event) error {
		tail <- e
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("diff.*.merged", func(_ context.Context, e *Event) error {
		single <- e
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, "diff.page.merged", NewEvent("diff.page.merged", "test", "", nil)))
	require.NoError(t, bus.Publish(ctx, "diff.load.failed.s1", NewEvent("diff.load.failed", "test", "", nil)))
	require.NoError(t, bus.Publish(ctx, "tree.node.changed", NewEvent("tree.node.changed", "test", "", nil)))

	types := map[string]bool{}
	types[receive(t, tail).Type] = true
	types[receive(t, tail).Type] = true
	assert.Equal(t, map[string]bool{"diff.page.merged": true, "diff.load.failed": true}, types)
	assert.Equal(t, "diff.page.merged", receive(t, single).Type)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, tail)
	assert.Empty(t, single)
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryEventBus(logger.Nop())
	defer bus.Close()

	var count atomic.Int32
	sub, err := bus.Subscribe("tree.>", func(context.Context, *Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())
	assert.False(t, sub.Active())

	require.NoError(t, bus.Publish(context.Background(), "tree.opened", NewEvent("tree.opened", "test", "", nil)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}

func TestMemoryEventBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewMemoryEventBus(logger.Nop())
	defer bus.Close()

	ok := make(chan *Event, 1)
	_, err := bus.Subscribe("x", func(context.Context, *Event) error { return errors.New("boom") })
	require.NoError(t, err)
	_, err = bus.Subscribe("x", func(_ context.Context, e *Event) error {
		ok <- e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "x", NewEvent("x", "test", "", nil)))
	receive(t, ok)
}

func TestMemoryEventBus_Closed(t *testing.T) {
	bus := NewMemoryEventBus(logger.Nop())
	sub, err := bus.Subscribe("x", func(context.Context, *Event) error { return nil })
	require.NoError(t, err)
	bus.Close()

	assert.False(t, bus.IsConnected())
	assert.False(t, sub.Active())
	assert.ErrorIs(t, bus.Publish(context.Background(), "x", NewEvent("x", "test", "", nil)), ErrClosed)
	_, err = bus.Subscribe("x", func(context.Context, *Event) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCompilePattern(t *testing.T) {
	assert.Nil(t, compilePattern("tree.node.changed"))
	re := compilePattern("tree.*.changed")
	require.NotNil(t, re)
	assert.True(t, re.MatchString("tree.node.changed"))
	assert.False(t, re.MatchString("tree.node.deep.changed"))
	re = compilePattern("tree.>")
	require.NotNil(t, re)
	assert.True(t, re.MatchString("tree.node.changed.abc"))
	assert.False(t, re.MatchString("tree"))
}
