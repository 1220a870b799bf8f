package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

func newTestRouter(chat *fakeChat, j Joiner) (*Router, *[]string) {
	fetch := &fakeFetcher{st: spaceapi.Status{Space: "HQ", State: &spaceapi.State{Open: ptr(true)}}}
	q := newQuery(fetch, chat, 0)
	a := NewAcceptor(j, logx.Nop())
	a.sleep = func(d time.Duration) {}
	r := NewRouter(botID, q, a, logx.Nop())

	var spawned []string
	r.spawn = func(name string, fn func()) {
		spawned = append(spawned, name)
		fn()
	}
	return r, &spawned
}

func TestRouterAcceptsOwnInviteOnly(t *testing.T) {
	j := &fakeJoiner{}
	r, spawned := newTestRouter(&fakeChat{}, j)

	r.Route(context.Background(), transport.Event{Kind: transport.EventInvite, Room: "!x:example.org", Invitee: "@carol:example.org"})
	require.Empty(t, *spawned)
	require.Zero(t, j.attempts)

	r.Route(context.Background(), transport.Event{Kind: transport.EventInvite, Room: "!x:example.org", Invitee: botID})
	require.Equal(t, []string{"invite"}, *spawned)
	require.Equal(t, 1, j.attempts)
}

func TestRouterSkipsOwnMessages(t *testing.T) {
	chat := &fakeChat{}
	r, spawned := newTestRouter(chat, &fakeJoiner{})

	r.Route(context.Background(), msgEvent("$own", botID, "!space"))
	require.Empty(t, *spawned)

	r.Route(context.Background(), msgEvent("$q", "@dave:example.org", "!space"))
	require.Equal(t, []string{"query"}, *spawned)

	_, replies, reads := chat.snapshot()
	require.Len(t, replies, 1)
	require.Equal(t, "HQ is **open**", replies[0].Msg.Body)
	require.Equal(t, []string{"$q"}, reads)
}

func TestRouterRunStopsOnCancel(t *testing.T) {
	r, _ := newTestRouter(&fakeChat{}, &fakeJoiner{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx, make(chan transport.Event)))
}
