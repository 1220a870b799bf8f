package bridge

import (
	"context"
	"errors"
	"sync"

	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
)

var errSend = errors.New("send failed")

type sent struct {
	Room string
	Msg  transport.Message
}

type replied struct {
	Room string
	To   string
	Msg  transport.Message
}

// fakeChat records everything the bridge asks of the chat platform.
type fakeChat struct {
	mu       sync.Mutex
	failRoom map[string]bool
	sends    []sent
	replies  []replied
	reads    []string
	replyErr error
}

func (f *fakeChat) Send(ctx context.Context, room string, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRoom[room] {
		return errSend
	}
	f.sends = append(f.sends, sent{Room: room, Msg: msg})
	return nil
}

func (f *fakeChat) Reply(ctx context.Context, room string, to transport.Event, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, replied{Room: room, To: to.ID, Msg: msg})
	return nil
}

func (f *fakeChat) MarkRead(ctx context.Context, room, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, eventID)
	return nil
}

func (f *fakeChat) snapshot() ([]sent, []replied, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sends...), append([]replied(nil), f.replies...), append([]string(nil), f.reads...)
}

type fakeFetcher struct {
	mu    sync.Mutex
	st    spaceapi.Status
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (spaceapi.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.st, f.err
}

func ptr[T any](v T) *T { return &v }
