package worker

import (
	"context"
	"testing"
	"time"

	"tournament-ticketing/internal/events"
	"tournament-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type mockSweeperService struct {
	swept chan struct{}
}

func (m *mockSweeperService) Sweep(ctx context.Context) (int, error) {
	select {
	case m.swept <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestSweeperWorker_RunsPeriodically(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	svc := &mockSweeperService{swept: make(chan struct{}, 1)}
	w := NewSweeperWorker(svc, 20*time.Millisecond)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	select {
	case <-svc.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep was not triggered in time")
	}
}

func TestSweeperWorker_StopWithoutStart(t *testing.T) {
	w := NewSweeperWorker(&mockSweeperService{swept: make(chan struct{}, 1)}, time.Minute)
	require.NoError(t, w.Stop())
}

func TestEventWorker_AcksDeliveries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus := events.NewMemoryEventBus(10)
	w := NewEventWorker(bus)
	require.NoError(t, w.Start(ctx))

	event := model.NewDomainEvent(model.EventTournamentPublished, uuid.New(), "published", time.Now().UTC())
	require.NoError(t, bus.Publish(ctx, event))

	// Ack 在記憶體匯流排是 no-op，這裡驗證 worker 有在消化事件流：
	// 第二筆事件也能發佈成功代表前一筆已被取走
	require.NoError(t, bus.Publish(ctx, model.NewDomainEvent(model.EventTournamentStarted, uuid.New(), "in_progress", time.Now().UTC())))
}
