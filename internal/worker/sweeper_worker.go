package worker

import (
	"context"
	"time"

	"tournament-ticketing/internal/service"
	"tournament-ticketing/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SweeperWorker 定時驅動 Expiration Sweeper，
// 掃描本身在 service 層，這裡只負責排程。
type SweeperWorker interface {
	Start(ctx context.Context) error
	Stop() error
}

type SweeperWorkerImpl struct {
	service   service.SweeperService
	interval  time.Duration
	scheduler gocron.Scheduler
}

func NewSweeperWorker(svc service.SweeperService, interval time.Duration) SweeperWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweeperWorkerImpl{
		service:  svc,
		interval: interval,
	}
}

func (w *SweeperWorkerImpl) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	w.scheduler = scheduler

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			count, err := w.service.Sweep(ctx)
			if err != nil {
				logger.WithComponent("worker").Error("sweep failed", zap.Error(err))
				return
			}
			if count > 0 {
				logger.WithComponent("worker").Info("sweep finished", zap.Int("expired", count))
			}
		}),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	return nil
}

func (w *SweeperWorkerImpl) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	return w.scheduler.Shutdown()
}
