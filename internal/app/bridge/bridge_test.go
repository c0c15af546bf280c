package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avierx/tabdeck/internal/application/port"
)

// scriptedSender resolves each outgoing call according to a handler,
// simulating the extension's background script.
type scriptedSender struct {
	mu     sync.Mutex
	bridge *Bridge
	handle func(call Call) (any, string)
	sent   []Call
}

func (s *scriptedSender) Write(message any) error {
	call, ok := message.(Call)
	if !ok {
		return errors.New("unexpected frame type")
	}
	s.mu.Lock()
	s.sent = append(s.sent, call)
	handle := s.handle
	s.mu.Unlock()

	if call.ID == "" || handle == nil {
		return nil
	}
	go func() {
		result, errMsg := handle(call)
		var payload json.RawMessage
		if result != nil {
			payload, _ = json.Marshal(result)
		}
		s.bridge.Resolve(call.ID, payload, errMsg)
	}()
	return nil
}

func newScripted(handle func(call Call) (any, string)) (*Bridge, *scriptedSender) {
	sender := &scriptedSender{handle: handle}
	b := New(sender, time.Second)
	sender.bridge = b
	return b, sender
}

func TestQueryRoundTrip(t *testing.T) {
	b, sender := newScripted(func(call Call) (any, string) {
		require.Equal(t, "tabs.query", call.Method)
		return []port.BrowserTab{{ID: 1, URL: "https://a.example", Active: true}}, ""
	})

	tabs, err := b.Query(context.Background())
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, int64(1), tabs[0].ID)
	assert.Equal(t, CallType, sender.sent[0].Type)
}

func TestBrowserErrorSurfaces(t *testing.T) {
	b, _ := newScripted(func(Call) (any, string) {
		return nil, "Illegal URL"
	})

	_, err := b.Create(context.Background(), "about:config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Illegal URL")
}

func TestCallTimesOut(t *testing.T) {
	sender := &scriptedSender{} // never resolves
	b := New(sender, 20*time.Millisecond)
	sender.bridge = b

	err := b.Activate(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reply")
}

func TestContextCancelAbandonsCall(t *testing.T) {
	sender := &scriptedSender{}
	b := New(sender, time.Minute)
	sender.bridge = b

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	err := b.Activate(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned ID no longer resolves.
	assert.False(t, b.Resolve(sender.sent[0].ID, nil, ""))
}

func TestConcurrentCallsMatchByID(t *testing.T) {
	b, _ := newScripted(func(call Call) (any, string) {
		var params struct {
			TabID int64 `json:"tabId"`
		}
		raw, _ := json.Marshal(call.Params)
		_ = json.Unmarshal(raw, &params)
		return port.BrowserTab{ID: params.TabID}, ""
	})

	var wg sync.WaitGroup
	for i := int64(1); i <= 16; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tab, err := b.Get(context.Background(), id)
			assert.NoError(t, err)
			assert.Equal(t, id, tab.ID, "reply matched to its own call")
		}(i)
	}
	wg.Wait()
}

func TestFailAllAbortsPending(t *testing.T) {
	sender := &scriptedSender{}
	b := New(sender, time.Minute)
	sender.bridge = b

	done := make(chan error, 1)
	go func() {
		done <- b.Activate(context.Background(), 1)
	}()

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, 5*time.Millisecond)

	b.FailAll(errors.New("channel closed"))
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestNotifyIsFireAndForget(t *testing.T) {
	b, sender := newScripted(nil)

	b.Notify(context.Background(), 5, port.FeedbackAdded, 2)

	require.Len(t, sender.sent, 1)
	assert.Empty(t, sender.sent[0].ID, "no reply expected")
	assert.Equal(t, "page.notify", sender.sent[0].Method)
}
