package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spacebot/internal/eventbus"
	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

func newTestLoop(chat *fakeChat, seed spaceapi.State, bus eventbus.Bus) *Loop {
	d := NewDispatcher(chat, []string{"!a:example.org", "!b:example.org"}, time.Second, logx.Nop())
	return NewLoop(NewCache(seed), d, bus, logx.Nop())
}

func TestLoopNotifiesOnceOnChange(t *testing.T) {
	chat := &fakeChat{}
	l := newTestLoop(chat, spaceapi.State{Open: ptr(false)}, nil)
	payload := []byte(`{"space":"HQ","state":{"open":true}}`)

	require.True(t, l.Handle(context.Background(), payload))
	require.False(t, l.Handle(context.Background(), payload))

	want := transport.Message{Body: "HQ is **open**", Markdown: true}
	sends, _, _ := chat.snapshot()
	require.Equal(t, []sent{{Room: "!a:example.org", Msg: want}, {Room: "!b:example.org", Msg: want}}, sends)
}

func TestLoopMessageChangeIsAChange(t *testing.T) {
	chat := &fakeChat{}
	l := newTestLoop(chat, spaceapi.State{Open: ptr(true)}, nil)

	require.True(t, l.Handle(context.Background(), []byte(`{"space":"HQ","state":{"open":true,"message":"party"}}`)))

	sends, _, _ := chat.snapshot()
	require.Len(t, sends, 2)
	require.Equal(t, "HQ is **open** (party)", sends[0].Msg.Body)
}

func TestLoopDropsUnusablePayloads(t *testing.T) {
	chat := &fakeChat{}
	seed := spaceapi.State{Open: ptr(false)}
	l := newTestLoop(chat, seed, nil)

	require.False(t, l.Handle(context.Background(), []byte(`{not json`)))
	require.False(t, l.Handle(context.Background(), []byte(`{"space":"HQ"}`)))

	sends, _, _ := chat.snapshot()
	require.Empty(t, sends)
	require.True(t, l.cache.Current().Equal(seed))
}

func TestLoopMissingOpenUpdatesCacheWithoutNotifying(t *testing.T) {
	chat := &fakeChat{}
	l := newTestLoop(chat, spaceapi.State{Open: ptr(false)}, nil)

	require.False(t, l.Handle(context.Background(), []byte(`{"space":"HQ","state":{"message":"?"}}`)))

	sends, _, _ := chat.snapshot()
	require.Empty(t, sends)
	require.Nil(t, l.cache.Current().Open)
}

func TestLoopPublishesBusEvents(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	l := newTestLoop(&fakeChat{}, spaceapi.State{Open: ptr(false)}, bus)
	l.Handle(context.Background(), []byte(`{"space":"HQ","state":{"open":true}}`))

	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	require.Equal(t, []string{eventbus.TypeFeedReceived, eventbus.TypeStatusChanged}, types)
}

func TestLoopRunProcessesInOrderAndStopsOnCancel(t *testing.T) {
	chat := &fakeChat{}
	l := newTestLoop(chat, spaceapi.State{Open: ptr(false)}, nil)
	feed := make(chan []byte, 4)
	feed <- []byte(`{"space":"HQ","state":{"open":true}}`)
	feed <- []byte(`{"space":"HQ","state":{"open":false}}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, feed) }()

	require.Eventually(t, func() bool {
		sends, _, _ := chat.snapshot()
		return len(sends) == 4
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	sends, _, _ := chat.snapshot()
	require.Equal(t, "HQ is **open**", sends[0].Msg.Body)
	require.Equal(t, "HQ is **closed**", sends[3].Msg.Body)
}

func TestLoopRunReturnsWhenFeedCloses(t *testing.T) {
	l := newTestLoop(&fakeChat{}, spaceapi.State{}, nil)
	feed := make(chan []byte)
	close(feed)
	require.NoError(t, l.Run(context.Background(), feed))
}
