package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_PublishToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []EventType
	d.Subscribe(EventCredentialMigrated, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventCredentialMigrated}))
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventLoginSucceeded}))
	assert.Equal(t, []EventType{EventCredentialMigrated}, got)
}

func TestDispatcher_HandlerErrorsDoNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	called := 0
	d.Subscribe(EventLoginFailed, func(context.Context, Event) error { return boom })
	d.Subscribe(EventLoginFailed, func(context.Context, Event) error { called++; return nil })

	err := d.Publish(context.Background(), Event{Type: EventLoginFailed})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, called)
}

func TestDispatcher_ConcurrentPublish(t *testing.T) {
	d := NewInMemoryDispatcher()
	var mu sync.Mutex
	count := 0
	d.Subscribe(EventLoginSucceeded, func(context.Context, Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Publish(context.Background(), Event{Type: EventLoginSucceeded})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}

func TestDispatcher_PanickingHandlerBecomesError(t *testing.T) {
	d := NewInMemoryDispatcher()
	called := false
	d.Subscribe(EventUserRegistered, func(context.Context, Event) error { panic("bad handler") })
	d.Subscribe(EventUserRegistered, func(context.Context, Event) error { called = true; return nil })

	err := d.Publish(context.Background(), Event{Type: EventUserRegistered})
	assert.ErrorContains(t, err, "user_registered handler panicked")
	assert.True(t, called)
}
