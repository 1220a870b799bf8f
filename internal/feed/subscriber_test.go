package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "spacebot/pkg/logx"
)

func TestDeliverCopiesPayload(t *testing.T) {
	s := New(Config{Buffer: 2}, logx.Nop())
	raw := []byte(`{"space":"HQ"}`)
	s.deliver(raw)
	raw[0] = 'X'

	got := <-s.Payloads()
	require.Equal(t, `{"space":"HQ"}`, string(got))
}

func TestDeliverBlocksUntilStopped(t *testing.T) {
	s := New(Config{Buffer: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx

	s.deliver([]byte("a"))
	done := make(chan struct{})
	go func() {
		s.deliver([]byte("b"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("deliver returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestStartRejectsMissingBroker(t *testing.T) {
	s := New(Config{Topic: "makerspace/spaceapi"}, logx.Nop())
	require.Error(t, s.Start(context.Background()))
}

func TestOptionsCarryCredentials(t *testing.T) {
	s := New(Config{Broker: "tcp://localhost:1883", ClientID: "spaceapi-matrix-bot", Username: "u", Password: "p", Topic: "t"}, logx.Nop())
	opts := s.options()
	require.Equal(t, "spaceapi-matrix-bot", opts.ClientID)
	require.Equal(t, "u", opts.Username)
	require.True(t, opts.CleanSession)
	require.True(t, opts.AutoReconnect)
	require.EqualValues(t, 5, opts.KeepAlive)
}
