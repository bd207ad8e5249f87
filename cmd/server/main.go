package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tournament-ticketing/config"
	"tournament-ticketing/internal/cache"
	"tournament-ticketing/internal/database"
	"tournament-ticketing/internal/events"
	"tournament-ticketing/internal/handler"
	"tournament-ticketing/internal/repository"
	"tournament-ticketing/internal/service"
	"tournament-ticketing/internal/worker"
	"tournament-ticketing/pkg/logger"
	"tournament-ticketing/pkg/ticketcode"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer pool.Close()

	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	defer rdb.Close()

	bus, err := newEventBus(cfg, rdb)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}

	clock := clockwork.NewRealClock()

	tournamentRepo := repository.NewTournamentRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	slotGate := cache.NewRegistrationSlotGate(rdb)
	codeGen := ticketcode.NewRandomGenerator(cfg.Ticket.CodePrefix)

	tournamentService := service.NewTournamentService(tournamentRepo, participantRepo, slotGate, bus, clock)
	ticketService := service.NewTicketService(ticketRepo, tournamentRepo, codeGen, bus, clock, cfg.Ticket.ReservationTTL)
	sweeperService := service.NewSweeperService(ticketRepo, bus, clock, cfg.Sweeper.BatchSize)

	eventWorker := worker.NewEventWorker(bus)
	if err := eventWorker.Start(ctx); err != nil {
		log.Fatalf("Failed to start event worker: %v", err)
	}

	sweeperWorker := worker.NewSweeperWorker(sweeperService, cfg.Sweeper.Interval)
	if err := sweeperWorker.Start(ctx); err != nil {
		log.Fatalf("Failed to start sweeper worker: %v", err)
	}
	defer sweeperWorker.Stop()

	router := gin.Default()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	handler.NewTournamentHandler(tournamentService, clock).RegisterRoutes(router)
	handler.NewTicketHandler(ticketService, clock).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

func newEventBus(cfg *config.Config, rdb *redis.Client) (events.EventBus, error) {
	switch cfg.EventBus.Kind {
	case "memory":
		return events.NewMemoryEventBus(1024), nil
	case "redis":
		return events.NewRedisStreamEventBus(rdb, "", nil)
	case "nats":
		return events.NewNATSEventBus(&cfg.NATS)
	default:
		return nil, fmt.Errorf("unknown event bus kind: %s", cfg.EventBus.Kind)
	}
}
