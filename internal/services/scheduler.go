package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/metrics"
	"auction-bidding/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically settles auctions nobody touched after their close
// time. Only the instance holding leadership sweeps; lazy evaluation covers
// everything else.
type Sweeper struct {
	cron           *cron.Cron
	schedule       string
	auctionMgr     *AuctionManager
	leaderElection domain.LeaderElection
	instanceID     string
	log            logger.Logger

	mu      sync.Mutex
	running bool
}

func NewSweeper(schedule string, auctionMgr *AuctionManager, leaderElection domain.LeaderElection,
	instanceID string, log logger.Logger) *Sweeper {
	return &Sweeper{
		cron:           cron.New(),
		schedule:       schedule,
		auctionMgr:     auctionMgr,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		log:            log.With("component", "sweeper"),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("Starting auction sweeper", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for a sweep in progress to finish.
func (s *Sweeper) Stop() error {
	s.log.Info("Stopping auction sweeper")
	<-s.cron.Stop().Done()
	return nil
}

// RunOnce performs a single sweep if this instance leads. Overlapping
// invocations are skipped.
func (s *Sweeper) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	leading, err := s.ensureLeadership(ctx)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !leading {
		s.log.Debug("Not the leader, skipping sweep", "instance_id", s.instanceID)
		return
	}

	started := time.Now()
	settled, err := s.auctionMgr.SweepExpired(ctx)
	metrics.SweepFinished(started)
	if err != nil {
		s.log.Error("Sweep failed", "error", err)
		return
	}
	s.log.Debug("Sweep completed", "settled", settled, "duration", time.Since(started))
}

func (s *Sweeper) ensureLeadership(ctx context.Context) (bool, error) {
	leading, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil || leading {
		return leading, err
	}

	became, err := s.leaderElection.BecomeLeader(ctx, s.instanceID)
	if err != nil {
		return false, err
	}
	if became {
		s.log.Info("Became sweep leader", "instance_id", s.instanceID)
	}
	return became, nil
}
