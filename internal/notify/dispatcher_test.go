package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seatshare/internal/domain"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string { return "mock" }

func (m *MockSink) Deliver(ctx context.Context, e domain.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	failing := new(MockSink)
	failing.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("boom"))
	ok := new(MockSink)
	ok.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	d := NewDispatcher(zap.NewNop(), 8, failing, ok)
	for _, id := range []string{"e1", "e2"} {
		d.Publish(context.Background(), domain.Event{ID: id, Type: domain.EventSeatApproved})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	ok.AssertNumberOfCalls(t, "Deliver", 2)
	failing.AssertNumberOfCalls(t, "Deliver", 2)
	assert.Equal(t, "e1", ok.Calls[0].Arguments.Get(1).(domain.Event).ID)
	assert.Equal(t, "e2", ok.Calls[1].Arguments.Get(1).(domain.Event).ID)
}

// blockingSink holds the worker until released.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []string
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(_ context.Context, e domain.Event) error {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e.ID)
	s.mu.Unlock()
	return nil
}

func TestDispatcherPublishNeverBlocks(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(zap.NewNop(), 1, sink)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Publish(context.Background(), domain.Event{ID: "e"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	close(sink.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.LessOrEqual(t, len(sink.got), 2, "overflow must be dropped")
	assert.NotEmpty(t, sink.got)
}

func TestDispatcherAfterClose(t *testing.T) {
	sink := new(MockSink)
	d := NewDispatcher(zap.NewNop(), 4, sink)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	d.Publish(context.Background(), domain.Event{ID: "late"})
	sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestRedisSink(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()
	sink := NewRedisSink(client, "")

	assert.Equal(t, "seatshare:user:u1", sink.Channel("u1"))
	assert.NoError(t, sink.Deliver(context.Background(), domain.Event{ID: "e"}), "no recipients, no round trip")
	assert.Error(t, sink.Deliver(context.Background(), domain.Event{ID: "e", Recipients: []string{"u1"}}))
}
