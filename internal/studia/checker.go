package studia

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckerConfig holds session check configuration.
type CheckerConfig struct {
	CheckInterval time.Duration
	FailThreshold int
	Concurrency   int
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(alive bool)

// SessionChecker periodically probes stored sessions and forgets the ones
// the portal has logged out.
type SessionChecker struct {
	repo       sessionRepo
	portal     portal
	failCounts map[int64]int
	mu         sync.Mutex
	cfg        CheckerConfig
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// NewSessionChecker creates a SessionChecker.
func NewSessionChecker(repo sessionRepo, p portal, cfg CheckerConfig, logger *zap.Logger) *SessionChecker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 15 * time.Minute
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 2
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	return &SessionChecker{
		repo:       repo,
		portal:     p,
		failCounts: make(map[int64]int),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetMetricsRecord configures the metrics callback.
func (c *SessionChecker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the check loop until done is closed.
func (c *SessionChecker) Start(done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-done:
			return
		}
	}
}

// CheckAll probes every live session with bounded concurrency. A session is
// cleared after FailThreshold consecutive logged-out answers; transport
// errors do not count.
func (c *SessionChecker) CheckAll(ctx context.Context) {
	sessions, err := c.repo.List(ctx)
	if err != nil {
		c.logger.Error("studia: list sessions", zap.Error(err))
		return
	}

	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, s := range sessions {
		if !s.Alive() {
			continue
		}
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			alive, err := c.portal.Probe(ctx, sess.Cookie)
			if err != nil {
				c.logger.Warn("studia: probe", zap.Int64("program_id", sess.ProgramID), zap.Error(err))
				return
			}
			if c.onMetrics != nil {
				c.onMetrics(alive)
			}

			c.mu.Lock()
			if alive {
				c.failCounts[sess.ProgramID] = 0
			} else {
				c.failCounts[sess.ProgramID]++
			}
			count := c.failCounts[sess.ProgramID]
			if count >= c.cfg.FailThreshold {
				delete(c.failCounts, sess.ProgramID)
			}
			c.mu.Unlock()

			if count < c.cfg.FailThreshold {
				return
			}
			if err := c.repo.ClearCookie(ctx, sess.ProgramID); err != nil {
				c.logger.Warn("studia: clear session", zap.Error(err))
				return
			}
			c.logger.Warn("studia: session expired",
				zap.Int64("program_id", sess.ProgramID),
				zap.String("program", sess.ProgramName),
			)
		}(s)
	}

	wg.Wait()
}
