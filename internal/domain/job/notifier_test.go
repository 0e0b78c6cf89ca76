package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/domain/model"
)

type stubWaiter struct {
	calls chan model.Kind
	err   error
	sleep time.Duration
}

func (s *stubWaiter) WaitForNotification(ctx context.Context, kind model.Kind) error {
	select {
	case s.calls <- kind:
	default:
	}

	if s.sleep > 0 {
		timer := time.NewTimer(s.sleep)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

func TestNewNotifierRequiresWaiter(t *testing.T) {
	notifier, err := NewNotifier(NotifierOptions{})
	require.ErrorIs(t, err, ErrWaiterRequired)
	assert.Nil(t, notifier)
}

func TestNotifier_SubscribeReceivesWakeups(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan model.Kind, 4), sleep: 10 * time.Millisecond}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.KindText)
	defer unsub()

	select {
	case kind := <-waiter.calls:
		assert.Equal(t, model.KindText, kind)
	case <-time.After(time.Second):
		t.Fatal("expected waiter to be invoked")
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected wake-up to be delivered")
	}
}

func TestNotifier_UnsubscribeClosesChannelAndIsIdempotent(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan model.Kind, 1), sleep: 50 * time.Millisecond}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsub, ch := notifier.Subscribe(model.KindImage)
	unsub()
	unsub()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after unsubscribe")
	}

	notifier.mu.Lock()
	assert.Empty(t, notifier.hubs)
	notifier.mu.Unlock()
}

func TestNotifier_StopAllClosesChannels(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan model.Kind, 2), err: errors.New("boom")}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter, Backoff: 5 * time.Millisecond})
	require.NoError(t, err)

	unsubText, chText := notifier.Subscribe(model.KindText)
	unsubImage, chImage := notifier.Subscribe(model.KindImage)

	notifier.StopAll()

	for _, ch := range []<-chan struct{}{chText, chImage} {
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
	}

	assert.NotPanics(t, unsubText)
	assert.NotPanics(t, unsubImage)
}
