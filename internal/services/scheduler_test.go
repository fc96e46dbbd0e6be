package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-bidding/internal/domain/mocks"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/internal/testutil"
	"auction-bidding/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func newSweeperEnv(t *testing.T) (*env, *mocks.MockLeaderElection, *Sweeper) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	clock := testutil.NewManualClock(start)
	e := newEnvWithStore(clock, memory.NewStore(clock), testBidding)
	leader := mocks.NewMockLeaderElection(ctrl)
	return e, leader, NewSweeper("@every 1m", e.manager, leader, "instance-1", logger.NewNop())
}

func TestSweeper_SettlesWhenLeading(t *testing.T) {
	e, leader, sweeper := newSweeperEnv(t)
	ctx := context.Background()
	a := e.createAuction(t, "10", time.Minute)
	e.clock.Advance(time.Minute)

	leader.EXPECT().IsLeader(gomock.Any(), "instance-1").Return(true, nil)
	sweeper.RunOnce(ctx)

	got, err := e.store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestSweeper_CampaignsForLeadership(t *testing.T) {
	e, leader, sweeper := newSweeperEnv(t)
	ctx := context.Background()
	a := e.createAuction(t, "10", time.Minute)
	e.clock.Advance(time.Minute)

	gomock.InOrder(
		leader.EXPECT().IsLeader(gomock.Any(), "instance-1").Return(false, nil),
		leader.EXPECT().BecomeLeader(gomock.Any(), "instance-1").Return(false, nil),
	)
	sweeper.RunOnce(ctx)

	got, err := e.store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive, "followers must not sweep")

	gomock.InOrder(
		leader.EXPECT().IsLeader(gomock.Any(), "instance-1").Return(false, nil),
		leader.EXPECT().BecomeLeader(gomock.Any(), "instance-1").Return(true, nil),
	)
	sweeper.RunOnce(ctx)

	got, err = e.store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestSweeper_LeadershipErrorSkipsSweep(t *testing.T) {
	e, leader, sweeper := newSweeperEnv(t)
	ctx := context.Background()
	a := e.createAuction(t, "10", time.Minute)
	e.clock.Advance(time.Minute)

	leader.EXPECT().IsLeader(gomock.Any(), "instance-1").Return(false, errors.New("redis down"))
	sweeper.RunOnce(ctx)

	got, err := e.store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	e, leader, _ := newSweeperEnv(t)
	sweeper := NewSweeper("not a schedule", e.manager, leader, "instance-1", logger.NewNop())
	require.Error(t, sweeper.Start(context.Background()))
}
