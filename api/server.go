package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"remarknews/orchestrator"
	"remarknews/rssfeeds"
	"remarknews/runlock"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrBadRequest marks trigger parameters the runner cannot honor.
var ErrBadRequest = errors.New("invalid run request")

// PageExtractor scrapes a single article page.
type PageExtractor interface {
	ExtractArticle(ctx context.Context, pageURL string) (*rssfeeds.Extraction, error)
}

type Options struct {
	Runner    *orchestrator.Runner
	Lock      runlock.Locker
	Feeds     orchestrator.FeedProcessor
	Extractor PageExtractor
}

// Server exposes the pipeline over HTTP and runs scheduled digests.
type Server struct {
	runner    *orchestrator.Runner
	lock      runlock.Locker
	feeds     orchestrator.FeedProcessor
	extractor PageExtractor
	runs      *runStore

	engine     *gin.Engine
	httpServer *http.Server
	cron       *cron.Cron

	// ctx outlives requests; runs started over HTTP are cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(opts Options) *Server {
	lock := opts.Lock
	if lock == nil {
		lock = runlock.NewLocal()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:    opts.Runner,
		lock:      lock,
		feeds:     opts.Feeds,
		extractor: opts.Extractor,
		runs:      newRunStore(50),
		cron:      cron.New(),
		ctx:       ctx,
		cancel:    cancel,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.handleHealth)
	s.registerRunRoutes(r)
	s.registerFeedRoutes(r)
	s.engine = r
	return s
}

// Handler returns the router (tests, embedding).
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves HTTP on addr in the background.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting api server", "addr", addr)

	errc := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("api server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// StartCron schedules digest runs. A tick that finds a run in progress is
// skipped.
func (s *Server) StartCron(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		id, err := s.Trigger("", 0, "cron")
		switch {
		case errors.Is(err, runlock.ErrLocked):
			slog.Info("cron skipped: a run is in progress")
		case err != nil:
			slog.Error("cron run failed to start", "error", err)
		default:
			slog.Info("cron started run", "run_id", id)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()
	slog.Info("cron job started", "schedule", schedule)
	return nil
}

// Trigger starts a run in the background and returns its id. format and
// hours override the configured values when non-zero.
func (s *Server) Trigger(format string, hours int, origin string) (string, error) {
	runner, err := s.runner.Override(format, hours)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	release, err := s.lock.Acquire(s.ctx)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	s.runs.start(id, origin)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		report, err := runner.Run(s.ctx, id)
		s.runs.finish(id, report, err)
		if err != nil {
			slog.Error("digest run failed", "run_id", id, "error", err)
		}
	}()
	return id, nil
}

// Wait blocks until every background run has finished.
func (s *Server) Wait() { s.wg.Wait() }

// Shutdown stops the scheduler and HTTP server, cancels runs in progress and
// waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down api server")
	<-s.cron.Stop().Done()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.cancel()
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
