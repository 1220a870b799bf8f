package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

const botID = "@spacebot:example.org"

func newQuery(fetch Fetcher, chat Replier, rate int) *QueryHandler {
	return NewQueryHandler(QueryConfig{Self: botID, Trigger: "!space", RatePerMin: rate}, fetch, chat, logx.Nop())
}

func msgEvent(id, sender, text string) transport.Event {
	return transport.Event{Kind: transport.EventMessage, Room: "!room:example.org", ID: id, Sender: sender, Text: text}
}

func TestQueryRepliesThreadedAndMarksRead(t *testing.T) {
	chat := &fakeChat{}
	fetch := &fakeFetcher{st: spaceapi.Status{Space: "HQ", State: &spaceapi.State{Open: ptr(false), Message: ptr("back soon")}}}

	ok := newQuery(fetch, chat, 0).Handle(context.Background(), msgEvent("$e1", "@alice:example.org", "is it open? !space"))
	require.True(t, ok)

	_, replies, reads := chat.snapshot()
	require.Equal(t, []replied{{
		Room: "!room:example.org",
		To:   "$e1",
		Msg:  transport.Message{Body: "HQ is **closed** (back soon)", Markdown: true},
	}}, replies)
	require.Equal(t, []string{"$e1"}, reads)
}

func TestQueryFromSelfIsIgnored(t *testing.T) {
	chat := &fakeChat{}
	fetch := &fakeFetcher{st: spaceapi.Status{Space: "HQ"}}

	ok := newQuery(fetch, chat, 0).Handle(context.Background(), msgEvent("$e1", botID, "> !space\nHQ is open"))
	require.False(t, ok)

	_, replies, reads := chat.snapshot()
	require.Empty(t, replies)
	require.Empty(t, reads)
	require.Zero(t, fetch.calls)
}

func TestQueryFetchFailureRepliesWithApology(t *testing.T) {
	chat := &fakeChat{}
	fetch := &fakeFetcher{err: errors.New("HTTP error: connection refused")}

	ok := newQuery(fetch, chat, 0).Handle(context.Background(), msgEvent("$e2", "@bob:example.org", "!space"))
	require.True(t, ok)

	_, replies, reads := chat.snapshot()
	require.Len(t, replies, 1)
	require.Equal(t, "Something has gone wrong... (HTTP error: connection refused)", replies[0].Msg.Body)
	require.Equal(t, []string{"$e2"}, reads)
}

func TestQueryMissingOpenRepliesWithApology(t *testing.T) {
	chat := &fakeChat{}
	fetch := &fakeFetcher{st: spaceapi.Status{Space: "HQ", State: &spaceapi.State{}}}

	newQuery(fetch, chat, 0).Handle(context.Background(), msgEvent("$e3", "@bob:example.org", "!space"))

	_, replies, _ := chat.snapshot()
	require.Len(t, replies, 1)
	require.Contains(t, replies[0].Msg.Body, "Something has gone wrong...")
}

func TestQueryNonTriggerOnlyMarksRead(t *testing.T) {
	chat := &fakeChat{}
	fetch := &fakeFetcher{}

	ok := newQuery(fetch, chat, 0).Handle(context.Background(), msgEvent("$e4", "@bob:example.org", "hello"))
	require.False(t, ok)

	_, replies, reads := chat.snapshot()
	require.Empty(t, replies)
	require.Equal(t, []string{"$e4"}, reads)
	require.Zero(t, fetch.calls)
}

func TestQueryReplyFailureStillMarksRead(t *testing.T) {
	chat := &fakeChat{replyErr: errors.New("forbidden")}
	fetch := &fakeFetcher{st: spaceapi.Status{Space: "HQ"}}

	ok := newQuery(fetch, chat, 0).Handle(context.Background(), msgEvent("$e5", "@bob:example.org", "!space"))
	require.False(t, ok)

	_, _, reads := chat.snapshot()
	require.Equal(t, []string{"$e5"}, reads)
}

func TestQueryRateLimitPerRoom(t *testing.T) {
	chat := &fakeChat{}
	fetch := &fakeFetcher{st: spaceapi.Status{Space: "HQ"}}
	q := newQuery(fetch, chat, 1)

	require.True(t, q.Handle(context.Background(), msgEvent("$1", "@bob:example.org", "!space")))
	require.False(t, q.Handle(context.Background(), msgEvent("$2", "@bob:example.org", "!space")))

	other := msgEvent("$3", "@bob:example.org", "!space")
	other.Room = "!other:example.org"
	require.True(t, q.Handle(context.Background(), other))

	_, replies, reads := chat.snapshot()
	require.Len(t, replies, 2)
	require.Equal(t, []string{"$1", "$2", "$3"}, reads)
	require.Equal(t, 2, fetch.calls)
}
