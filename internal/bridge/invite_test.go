package bridge

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "spacebot/pkg/logx"
)

type fakeJoiner struct {
	mu       sync.Mutex
	failures int // fail this many times, then succeed; <0 fails forever
	attempts int
}

func (f *fakeJoiner) AcceptInvite(ctx context.Context, room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures < 0 || f.attempts <= f.failures {
		return errors.New("M_FORBIDDEN")
	}
	return nil
}

func newTestAcceptor(j Joiner, log logx.Logger) (*Acceptor, *[]time.Duration) {
	var slept []time.Duration
	a := NewAcceptor(j, log)
	a.sleep = func(d time.Duration) { slept = append(slept, d) }
	return a, &slept
}

func TestAcceptorGivesUpAfterBackoffCeiling(t *testing.T) {
	var buf bytes.Buffer
	j := &fakeJoiner{failures: -1}
	a, slept := newTestAcceptor(j, logx.NewJSON(&buf, "debug"))

	out := a.Accept(context.Background(), "!room:example.org")
	require.Equal(t, GaveUp, out)

	var want []time.Duration
	for d := 2; d <= 2048; d *= 2 {
		want = append(want, time.Duration(d)*time.Second)
	}
	require.Equal(t, want, *slept)
	require.Equal(t, 11, j.attempts)
	require.LessOrEqual(t, j.attempts, 12)
	require.Equal(t, 1, strings.Count(buf.String(), "gave up joining room"))
	require.NotContains(t, buf.String(), "joined room\"")
}

func TestAcceptorJoinsAfterRetries(t *testing.T) {
	j := &fakeJoiner{failures: 2}
	a, slept := newTestAcceptor(j, logx.Nop())

	require.Equal(t, Joined, a.Accept(context.Background(), "!room:example.org"))
	require.Equal(t, 3, j.attempts)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestAcceptorJoinsFirstTry(t *testing.T) {
	j := &fakeJoiner{}
	a, slept := newTestAcceptor(j, logx.Nop())

	require.Equal(t, Joined, a.Accept(context.Background(), "!room:example.org"))
	require.Empty(t, *slept)
}
