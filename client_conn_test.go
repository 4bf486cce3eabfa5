package asock

import (
	"errors"
	"testing"
	"time"

	"github.com/karagenc/actionsocket/internal/sync"
	"github.com/karagenc/actionsocket/internal/utils"
	"github.com/karagenc/actionsocket/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "ws://localhost:3000/ws"

func newTestClient(config *ClientConfig) (*Client, *utils.TestTransport, *utils.TestScheduler) {
	if config == nil {
		config = new(ClientConfig)
	}
	tr := utils.NewTestTransport()
	config.Transport = tr
	client := NewClient(testURL, config)
	scheduler := utils.NewTestScheduler()
	client.conn.afterFunc = scheduler.AfterFunc
	return client, tr, scheduler
}

// Collects lifecycle notifications.
type lifecycle struct {
	mu         sync.Mutex
	opens      int
	closes     []error
	errs       []error
	attempts   []uint32
	terminated int
}

func watchLifecycle(client *Client) *lifecycle {
	l := new(lifecycle)
	client.OnOpen(func() {
		l.mu.Lock()
		l.opens++
		l.mu.Unlock()
	})
	client.OnClose(func(err error) {
		l.mu.Lock()
		l.closes = append(l.closes, err)
		l.mu.Unlock()
	})
	client.OnError(func(err error) {
		l.mu.Lock()
		l.errs = append(l.errs, err)
		l.mu.Unlock()
	})
	client.OnReconnectAttempt(func(attempt uint32) {
		l.mu.Lock()
		l.attempts = append(l.attempts, attempt)
		l.mu.Unlock()
	})
	client.OnTerminated(func() {
		l.mu.Lock()
		l.terminated++
		l.mu.Unlock()
	})
	return l
}

func (l *lifecycle) terminatedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.terminated
}

func (l *lifecycle) errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func TestState(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "reconnect scheduled", StateReconnectScheduled.String())
	assert.Equal(t, "closed permanently", StateClosedPermanently.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestConnect(t *testing.T) {
	t.Run("should open the connection", func(t *testing.T) {
		client, tr, _ := newTestClient(&ClientConfig{Subprotocol: "aws-json"})
		l := watchLifecycle(client)
		assert.Equal(t, StateDisconnected, client.State())

		require.NoError(t, client.Connect())
		assert.Equal(t, StateConnecting, client.State())
		assert.False(t, client.Connected())

		conn := tr.Last()
		require.NotNil(t, conn)
		assert.Equal(t, testURL, conn.URL)
		assert.Equal(t, "aws-json", conn.Subprotocol)

		conn.Open()
		assert.Equal(t, StateConnected, client.State())
		assert.True(t, client.Connected())
		assert.Equal(t, 1, l.opens)
	})

	t.Run("should be a no-op when already connected", func(t *testing.T) {
		client, tr, _ := newTestClient(nil)
		require.NoError(t, client.Connect())
		tr.Last().Open()

		require.NoError(t, client.Connect())
		assert.Equal(t, 1, tr.Attempts())
	})

	t.Run("should ignore signals from a superseded connection", func(t *testing.T) {
		client, tr, _ := newTestClient(&ClientConfig{ReconnectPolicy: ReconnectOnClose})
		l := watchLifecycle(client)

		require.NoError(t, client.Connect())
		first := tr.Last()
		require.NoError(t, client.Connect())
		second := tr.Last()
		require.NotSame(t, first, second)

		// The first handle is closed in the background.
		utils.WaitFor(t, utils.DefaultTestWaitTimeout, func() bool { return first.CloseCalls() == 1 })

		first.Open()
		assert.False(t, client.Connected())
		first.Receive([]byte(`{"event":"chat","body":"stale"}`))

		second.Open()
		assert.True(t, client.Connected())

		l.mu.Lock()
		defer l.mu.Unlock()
		assert.Equal(t, 1, l.opens)
		assert.Empty(t, l.closes)
		assert.Empty(t, l.attempts)
	})

	t.Run("should not retry when the transport is unsupported", func(t *testing.T) {
		client, tr, scheduler := newTestClient(nil)
		l := watchLifecycle(client)
		tr.SetNewError(transport.ErrUnsupported)

		err := client.Connect()
		assert.ErrorIs(t, err, transport.ErrUnsupported)
		assert.Equal(t, StateDisconnected, client.State())
		assert.Equal(t, 0, scheduler.Armed())

		errs := l.errors()
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], transport.ErrUnsupported)
	})

	t.Run("should retry when the transport cannot be created", func(t *testing.T) {
		client, tr, scheduler := newTestClient(nil)
		l := watchLifecycle(client)
		createErr := errors.New("bad URL")
		tr.SetNewError(createErr)

		err := client.Connect()
		assert.ErrorIs(t, err, createErr)
		assert.Equal(t, StateReconnectScheduled, client.State())
		assert.Equal(t, 1, scheduler.Armed())
		assert.Equal(t, []uint32{1}, l.attempts)

		tr.SetNewError(nil)
		require.True(t, scheduler.Fire())
		assert.Equal(t, 2, tr.Attempts())
		tr.Last().Open()
		assert.True(t, client.Connected())
		assert.Equal(t, uint32(0), client.RetryCount())
	})

	t.Run("should cancel a pending reconnect", func(t *testing.T) {
		client, tr, scheduler := newTestClient(nil)
		assert.ErrorIs(t, client.Emit("ping", nil), ErrNotConnected)
		require.Len(t, scheduler.Pending(), 1)

		require.NoError(t, client.Connect())
		assert.Empty(t, scheduler.Pending())
		assert.Equal(t, 1, tr.Attempts())
	})
}

func TestReconnect(t *testing.T) {
	t.Run("should not reconnect on close by default", func(t *testing.T) {
		client, tr, scheduler := newTestClient(nil)
		l := watchLifecycle(client)
		require.NoError(t, client.Connect())
		tr.Last().Open()

		tr.Last().CloseRemote()
		assert.False(t, client.Connected())
		assert.Equal(t, StateDisconnected, client.State())
		assert.Equal(t, 0, scheduler.Armed())
		assert.Equal(t, []error{nil}, l.closes)
	})

	t.Run("should reconnect on close with ReconnectOnClose", func(t *testing.T) {
		client, tr, scheduler := newTestClient(&ClientConfig{ReconnectPolicy: ReconnectOnClose})
		l := watchLifecycle(client)
		require.NoError(t, client.Connect())
		tr.Last().Open()

		connErr := errors.New("connection reset")
		tr.Last().Fail(connErr)
		assert.Equal(t, StateReconnectScheduled, client.State())
		assert.Equal(t, 1, scheduler.Armed())
		assert.Equal(t, []uint32{1}, l.attempts)
		assert.Equal(t, []error{connErr}, l.closes)
		assert.Equal(t, []error{connErr}, l.errs)

		require.True(t, scheduler.Fire())
		assert.Equal(t, StateConnecting, client.State())
		tr.Last().Open()
		assert.Equal(t, 2, l.opens)
	})

	t.Run("should retry forever when RestartMax is 0", func(t *testing.T) {
		client, tr, scheduler := newTestClient(&ClientConfig{ReconnectPolicy: ReconnectOnClose})
		l := watchLifecycle(client)
		require.NoError(t, client.Connect())

		for i := 0; i < 25; i++ {
			tr.Last().Fail(errors.New("refused"))
			require.True(t, scheduler.Fire())
		}
		assert.Equal(t, 25, scheduler.Armed())
		assert.Equal(t, uint32(25), client.RetryCount())
		assert.Equal(t, 0, l.terminatedCount())

		client.Disconnect()
		assert.Equal(t, 1, l.terminatedCount())
	})

	t.Run("should close permanently after RestartMax attempts", func(t *testing.T) {
		client, tr, scheduler := newTestClient(&ClientConfig{
			RestartMax:      3,
			ReconnectPolicy: ReconnectOnClose,
		})
		l := watchLifecycle(client)
		require.NoError(t, client.Connect())

		for i := 0; i < 3; i++ {
			tr.Last().Fail(errors.New("refused"))
			require.True(t, scheduler.Fire())
		}
		tr.Last().Fail(errors.New("refused"))

		assert.Equal(t, StateClosedPermanently, client.State())
		assert.Equal(t, 3, scheduler.Armed())
		assert.Equal(t, []uint32{1, 2, 3}, l.attempts)
		assert.Equal(t, 1, l.terminatedCount())

		assert.ErrorIs(t, client.Emit("ping", nil), ErrClosedPermanently)
		assert.ErrorIs(t, client.Connect(), ErrClosedPermanently)
		assert.Equal(t, 3, scheduler.Armed())
		assert.Equal(t, 4, tr.Attempts())
		assert.Equal(t, 1, l.terminatedCount())
	})

	t.Run("should close permanently on send once exhausted", func(t *testing.T) {
		client, tr, scheduler := newTestClient(&ClientConfig{RestartMax: 1})
		l := watchLifecycle(client)

		assert.ErrorIs(t, client.Emit("ping", nil), ErrNotConnected)
		require.True(t, scheduler.Fire())
		tr.Last().Fail(errors.New("refused"))
		assert.Equal(t, StateDisconnected, client.State())

		assert.ErrorIs(t, client.Emit("ping", nil), ErrClosedPermanently)
		assert.Equal(t, StateClosedPermanently, client.State())
		assert.Equal(t, 1, scheduler.Armed())
		assert.Equal(t, 1, l.terminatedCount())
	})

	t.Run("should reset the retry count on open", func(t *testing.T) {
		client, tr, scheduler := newTestClient(&ClientConfig{
			RestartMax:      2,
			ReconnectPolicy: ReconnectOnClose,
		})
		require.NoError(t, client.Connect())

		for round := 0; round < 3; round++ {
			tr.Last().Fail(errors.New("refused"))
			require.True(t, scheduler.Fire())
			tr.Last().Fail(errors.New("refused"))
			require.True(t, scheduler.Fire())
			assert.Equal(t, uint32(2), client.RetryCount())

			tr.Last().Open()
			assert.Equal(t, uint32(0), client.RetryCount())
		}
		assert.NotEqual(t, StateClosedPermanently, client.State())
	})

	t.Run("should keep at most one timer", func(t *testing.T) {
		client, tr, scheduler := newTestClient(nil)
		l := watchLifecycle(client)
		require.NoError(t, client.Connect())
		tr.Last().Open()
		tr.Last().Fail(errors.New("refused"))

		for i := 0; i < 5; i++ {
			err := client.Emit("ping", i)
			assert.ErrorIs(t, err, transport.ErrNotOpen)
		}
		assert.Equal(t, 1, scheduler.Armed())
		assert.Len(t, scheduler.Pending(), 1)
		assert.Equal(t, uint32(1), client.RetryCount())
		assert.Equal(t, []uint32{1}, l.attempts)
	})

	t.Run("should ignore a timer that fires after Connect", func(t *testing.T) {
		client, tr, scheduler := newTestClient(nil)
		require.NoError(t, client.Connect())
		tr.Last().Open()
		tr.Last().Fail(errors.New("refused"))

		assert.ErrorIs(t, client.Emit("ping", nil), transport.ErrNotOpen)
		late := scheduler.Expire()
		require.NotNil(t, late)

		require.NoError(t, client.Connect())
		assert.ErrorIs(t, client.Emit("ping", nil), transport.ErrNotOpen)
		require.Equal(t, 2, scheduler.Armed())
		attempts := tr.Attempts()

		late()
		assert.Equal(t, attempts, tr.Attempts())
		assert.Equal(t, StateReconnectScheduled, client.State())

		assert.ErrorIs(t, client.Emit("ping", nil), transport.ErrNotOpen)
		assert.Equal(t, 2, scheduler.Armed())
		assert.Len(t, scheduler.Pending(), 1)

		client.Disconnect()
		assert.Empty(t, scheduler.Pending())
	})

	t.Run("should give every connection attempt a fresh ID", func(t *testing.T) {
		client, _, _ := newTestClient(nil)
		require.NoError(t, client.Connect())
		first := client.conn.ID()
		require.NotEmpty(t, first)

		require.NoError(t, client.Connect())
		second := client.conn.ID()
		assert.NotEmpty(t, second)
		assert.NotEqual(t, first, second)
	})

	t.Run("should back off exponentially up to the maximum", func(t *testing.T) {
		min := 100 * time.Millisecond
		max := 500 * time.Millisecond
		client, tr, scheduler := newTestClient(&ClientConfig{
			ReconnectTime:    &min,
			ReconnectTimeMax: &max,
			ReconnectPolicy:  ReconnectOnClose,
		})
		require.NoError(t, client.Connect())

		var delays []time.Duration
		for i := 0; i < 4; i++ {
			tr.Last().Fail(errors.New("refused"))
			pending := scheduler.Pending()
			require.Len(t, pending, 1)
			delays = append(delays, pending[0].Delay)
			require.True(t, scheduler.Fire())
		}
		assert.Equal(t, []time.Duration{min, 200 * time.Millisecond, 400 * time.Millisecond, max}, delays)
	})

	t.Run("should use the default delay", func(t *testing.T) {
		client, _, scheduler := newTestClient(nil)
		client.Emit("ping", nil)
		pending := scheduler.Pending()
		require.Len(t, pending, 1)
		assert.Equal(t, DefaultReconnectTime, pending[0].Delay)
	})

	t.Run("should allow a zero delay", func(t *testing.T) {
		zero := time.Duration(0)
		client, _, scheduler := newTestClient(&ClientConfig{ReconnectTime: &zero})
		client.Emit("ping", nil)
		pending := scheduler.Pending()
		require.Len(t, pending, 1)
		assert.Equal(t, time.Duration(0), pending[0].Delay)
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("should close the connection for good", func(t *testing.T) {
		client, tr, scheduler := newTestClient(&ClientConfig{ReconnectPolicy: ReconnectOnClose})
		l := watchLifecycle(client)
		require.NoError(t, client.Connect())
		conn := tr.Last()
		conn.Open()

		client.Disconnect()
		assert.Equal(t, StateClosedPermanently, client.State())
		assert.False(t, client.Connected())
		assert.Equal(t, 1, l.terminatedCount())
		utils.WaitFor(t, utils.DefaultTestWaitTimeout, func() bool { return conn.CloseCalls() == 1 })

		assert.ErrorIs(t, client.Connect(), ErrClosedPermanently)
		assert.ErrorIs(t, client.Emit("ping", nil), ErrClosedPermanently)
		assert.Equal(t, 0, scheduler.Armed())
		assert.Equal(t, 1, tr.Attempts())

		client.Disconnect()
		assert.Equal(t, 1, l.terminatedCount())
		assert.Equal(t, 1, conn.CloseCalls())
	})

	t.Run("should stop a pending timer", func(t *testing.T) {
		client, _, scheduler := newTestClient(nil)
		client.Emit("ping", nil)
		require.Len(t, scheduler.Pending(), 1)

		client.Disconnect()
		assert.Empty(t, scheduler.Pending())
		assert.False(t, scheduler.Fire())
	})

	t.Run("should work without a connection", func(t *testing.T) {
		client, _, _ := newTestClient(nil)
		l := watchLifecycle(client)
		client.Disconnect()
		assert.Equal(t, StateClosedPermanently, client.State())
		assert.Equal(t, 1, l.terminatedCount())
		assert.Empty(t, l.errors())
	})

	t.Run("should report close errors", func(t *testing.T) {
		client, tr, _ := newTestClient(nil)
		tw := utils.NewTestWaiter(1)
		var got error
		client.OnError(func(err error) {
			got = err
			tw.Done()
		})
		require.NoError(t, client.Connect())
		closeErr := errors.New("close failed")
		tr.Last().SetCloseError(closeErr, nil)

		client.Disconnect()
		tw.WaitTimeout(t, utils.DefaultTestWaitTimeout)

		var disconnectErr *DisconnectError
		require.ErrorAs(t, got, &disconnectErr)
		assert.ErrorIs(t, got, closeErr)
		assert.Equal(t, StateClosedPermanently, client.State())
	})

	t.Run("should recover from a panicking close", func(t *testing.T) {
		client, tr, _ := newTestClient(nil)
		tw := utils.NewTestWaiter(1)
		var got error
		client.OnError(func(err error) {
			got = err
			tw.Done()
		})
		require.NoError(t, client.Connect())
		tr.Last().SetCloseError(nil, "boom")

		assert.NotPanics(t, client.Disconnect)
		tw.WaitTimeout(t, utils.DefaultTestWaitTimeout)

		var disconnectErr *DisconnectError
		require.ErrorAs(t, got, &disconnectErr)
		assert.Contains(t, got.Error(), "boom")
	})
}

func TestInboundFrames(t *testing.T) {
	setup := func(t *testing.T) (*Client, *utils.TestConn, *lifecycle) {
		client, tr, _ := newTestClient(nil)
		l := watchLifecycle(client)
		require.NoError(t, client.Connect())
		conn := tr.Last()
		conn.Open()
		return client, conn, l
	}

	t.Run("should dispatch a bare envelope", func(t *testing.T) {
		client, conn, _ := setup(t)
		var got []string
		client.On("chat", func(body string) { got = append(got, body) })

		conn.Receive([]byte(`{"event":"chat","body":"hi"}`))
		assert.Equal(t, []string{"hi"}, got)
	})

	t.Run("should unwrap an action frame", func(t *testing.T) {
		client, conn, _ := setup(t)
		var got map[string]int
		client.On("ping", func(body map[string]int) { got = body })

		conn.Receive([]byte(`{"action":"message","data":{"event":"ping","body":{"n":1}}}`))
		assert.Equal(t, map[string]int{"n": 1}, got)
	})

	t.Run("should drop empty frames", func(t *testing.T) {
		client, conn, l := setup(t)
		called := false
		client.On("", func() { called = true })

		conn.Receive(nil)
		conn.Receive([]byte{})
		assert.False(t, called)
		assert.Empty(t, l.errors())
	})

	t.Run("should report malformed frames and keep going", func(t *testing.T) {
		client, conn, l := setup(t)
		var got []string
		client.On("chat", func(body string) { got = append(got, body) })

		conn.Receive([]byte(`{"event":`))
		conn.Receive([]byte(`{"event":"chat","body":"still here"}`))

		errs := l.errors()
		require.Len(t, errs, 1)
		var frameErr *FrameError
		require.ErrorAs(t, errs[0], &frameErr)
		assert.Equal(t, []byte(`{"event":`), frameErr.Data)
		assert.Equal(t, []string{"still here"}, got)
		assert.True(t, client.Connected())
	})
}
