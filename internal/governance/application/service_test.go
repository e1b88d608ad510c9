package application

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"ento-core/internal/access"
	"ento-core/internal/clock"
	"ento-core/internal/fixedpoint"
	governance "ento-core/internal/governance/domain"
	governancememory "ento-core/internal/governance/infrastructure/memory"
	token "ento-core/internal/token/domain"
)

const vaultAccount = "sys.governance.vault"

func newGovernanceFixture(t *testing.T) (*GovernanceService, *token.Ledger, *clock.ManualClock) {
	t.Helper()
	ledger := token.NewLedger()
	for _, account := range []string{"alice", "bob"} {
		if err := ledger.Mint(account, fixedpoint.FromInt64(5000)); err != nil {
			t.Fatalf("seed mint %s: %v", account, err)
		}
	}
	registry := access.NewRegistry()
	registry.Grant("ops-admin", access.RoleExecutor)

	clk := clock.NewManualClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	service, err := NewGovernanceService(
		governancememory.NewStakeRepository(),
		governancememory.NewProposalRepository(),
		ledger,
		registry,
		vaultAccount,
		Params{
			VotingDelay:    time.Hour,
			VotingPeriod:   72 * time.Hour,
			ExecutionDelay: 24 * time.Hour,
			Cooldown:       168 * time.Hour,
			QuorumBps:      2000,
		},
		nil,
		clk,
	)
	if err != nil {
		t.Fatalf("new governance service: %v", err)
	}
	return service, ledger, clk
}

func stakeFor(t *testing.T, service *GovernanceService, account string, units int64) {
	t.Helper()
	if err := service.Stake(context.Background(), account, fixedpoint.FromInt64(units)); err != nil {
		t.Fatalf("stake %s: %v", account, err)
	}
}

func TestStakeMovesTokensToVault(t *testing.T) {
	service, ledger, _ := newGovernanceFixture(t)
	ctx := context.Background()

	stakeFor(t, service, "alice", 1000)
	if ledger.BalanceOf(vaultAccount).Cmp(fixedpoint.FromInt64(1000)) != 0 {
		t.Fatalf("vault balance %s, want 1000", ledger.BalanceOf(vaultAccount))
	}
	position, err := service.Position(ctx, "alice")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if position.Staked.Cmp(fixedpoint.FromInt64(1000)) != 0 {
		t.Fatalf("staked %s, want 1000", position.Staked)
	}
	total, _ := service.TotalStaked(ctx)
	if total.Cmp(fixedpoint.FromInt64(1000)) != 0 {
		t.Fatalf("total staked %s, want 1000", total)
	}
}

func TestUnstakeCooldown(t *testing.T) {
	service, ledger, clk := newGovernanceFixture(t)
	ctx := context.Background()
	stakeFor(t, service, "alice", 1000)

	if _, err := service.WithdrawUnstaked(ctx, "alice"); !errors.Is(err, governance.ErrNoPendingUnstake) {
		t.Fatalf("expected no-pending rejection, got %v", err)
	}

	cooldownEnd, err := service.RequestUnstake(ctx, "alice", fixedpoint.FromInt64(400))
	if err != nil {
		t.Fatalf("request unstake: %v", err)
	}
	if !cooldownEnd.Equal(clk.Now().Add(168 * time.Hour)) {
		t.Fatalf("unexpected cooldown end %s", cooldownEnd)
	}
	if _, err := service.RequestUnstake(ctx, "alice", fixedpoint.FromInt64(700)); !errors.Is(err, governance.ErrInsufficientStake) {
		t.Fatalf("expected insufficient stake, got %v", err)
	}

	if _, err := service.WithdrawUnstaked(ctx, "alice"); !errors.Is(err, governance.ErrCooldownNotElapsed) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}

	clk.Advance(168 * time.Hour)
	amount, err := service.WithdrawUnstaked(ctx, "alice")
	if err != nil {
		t.Fatalf("withdraw unstaked: %v", err)
	}
	if amount.Cmp(fixedpoint.FromInt64(400)) != 0 {
		t.Fatalf("withdrew %s, want 400", amount)
	}
	if ledger.BalanceOf("alice").Cmp(fixedpoint.FromInt64(4400)) != 0 {
		t.Fatalf("alice balance %s, want 4400", ledger.BalanceOf("alice"))
	}
	// Pending unstake left the quorum base immediately.
	total, _ := service.TotalStaked(ctx)
	if total.Cmp(fixedpoint.FromInt64(600)) != 0 {
		t.Fatalf("total staked %s, want 600", total)
	}
}

func TestProposeRequiresKnownParamAndStake(t *testing.T) {
	service, _, _ := newGovernanceFixture(t)
	ctx := context.Background()
	service.RegisterParam("exchange.fee_bps", func(string) error { return nil })

	stakeFor(t, service, "alice", 1000)
	if _, err := service.Propose(ctx, "alice", "unknown.param", "1", ""); !errors.Is(err, governance.ErrUnknownParam) {
		t.Fatalf("expected unknown param, got %v", err)
	}
	if _, err := service.Propose(ctx, "bob", "exchange.fee_bps", "25", ""); !errors.Is(err, governance.ErrNoStake) {
		t.Fatalf("expected no-stake rejection, got %v", err)
	}
	proposal, err := service.Propose(ctx, "alice", "exchange.fee_bps", "25", "lower the swap fee")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if state, _ := service.ProposalState(ctx, proposal.ID); state != governance.StatePending {
		t.Fatalf("expected pending, got %s", state)
	}
}

func TestVotingWindow(t *testing.T) {
	service, _, clk := newGovernanceFixture(t)
	ctx := context.Background()
	service.RegisterParam("exchange.fee_bps", func(string) error { return nil })
	stakeFor(t, service, "alice", 1000)

	proposal, err := service.Propose(ctx, "alice", "exchange.fee_bps", "25", "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteFor); !errors.Is(err, governance.ErrVotingNotStarted) {
		t.Fatalf("expected early vote rejection, got %v", err)
	}

	clk.Advance(time.Hour)
	if err := service.CastVote(ctx, "alice", proposal.ID, "maybe"); !errors.Is(err, governance.ErrInvalidVote) {
		t.Fatalf("expected choice validation, got %v", err)
	}
	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteAgainst); !errors.Is(err, governance.ErrAlreadyVoted) {
		t.Fatalf("expected repeat vote rejection, got %v", err)
	}
	if state, _ := service.ProposalState(ctx, proposal.ID); state != governance.StateActive {
		t.Fatalf("expected active, got %s", state)
	}

	clk.Advance(72 * time.Hour)
	if err := service.CastVote(ctx, "bob", proposal.ID, governance.VoteFor); !errors.Is(err, governance.ErrVotingClosed) {
		t.Fatalf("expected late vote rejection, got %v", err)
	}
}

func TestProposalLifecycleExecutesParam(t *testing.T) {
	service, _, clk := newGovernanceFixture(t)
	ctx := context.Background()

	var applied int64
	service.RegisterParam("exchange.fee_bps", func(value string) error {
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		applied = v
		return nil
	})
	stakeFor(t, service, "alice", 1000)
	stakeFor(t, service, "bob", 800)

	proposal, err := service.Propose(ctx, "alice", "exchange.fee_bps", "25", "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	clk.Advance(time.Hour)
	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteFor); err != nil {
		t.Fatalf("vote for: %v", err)
	}
	if err := service.CastVote(ctx, "bob", proposal.ID, governance.VoteAgainst); err != nil {
		t.Fatalf("vote against: %v", err)
	}

	if _, err := service.Queue(ctx, proposal.ID); !errors.Is(err, governance.ErrVotingNotEnded) {
		t.Fatalf("expected early queue rejection, got %v", err)
	}

	clk.Advance(72 * time.Hour)
	eta, err := service.Queue(ctx, proposal.ID)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if !eta.Equal(clk.Now().Add(24 * time.Hour)) {
		t.Fatalf("unexpected eta %s", eta)
	}
	if state, _ := service.ProposalState(ctx, proposal.ID); state != governance.StateQueued {
		t.Fatalf("expected queued, got %s", state)
	}

	if err := service.Execute(ctx, "alice", proposal.ID); err == nil {
		t.Fatal("expected executor role gate")
	}
	if err := service.Execute(ctx, "ops-admin", proposal.ID); !errors.Is(err, governance.ErrTimelockNotElapsed) {
		t.Fatalf("expected timelock rejection, got %v", err)
	}

	clk.Advance(24 * time.Hour)
	if err := service.Execute(ctx, "ops-admin", proposal.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if applied != 25 {
		t.Fatalf("applier saw %d, want 25", applied)
	}
	if err := service.Execute(ctx, "ops-admin", proposal.ID); !errors.Is(err, governance.ErrNotQueued) {
		t.Fatalf("expected execute-once rejection, got %v", err)
	}
	if state, _ := service.ProposalState(ctx, proposal.ID); state != governance.StateExecuted {
		t.Fatalf("expected executed, got %s", state)
	}
}

func TestExecuteAppliesGovernanceOwnParam(t *testing.T) {
	service, _, clk := newGovernanceFixture(t)
	ctx := context.Background()

	// Governance manages its own voting period, so the applier calls back
	// into the service that is executing the proposal.
	service.RegisterParam("governance.voting_period", func(value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		return service.SetVotingPeriod(d)
	})
	stakeFor(t, service, "alice", 1000)

	proposal, err := service.Propose(ctx, "alice", "governance.voting_period", "48h", "shorter voting window")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	clk.Advance(time.Hour)
	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteFor); err != nil {
		t.Fatalf("vote: %v", err)
	}
	clk.Advance(72 * time.Hour)
	if _, err := service.Queue(ctx, proposal.ID); err != nil {
		t.Fatalf("queue: %v", err)
	}
	clk.Advance(24 * time.Hour)

	done := make(chan error, 1)
	go func() { done <- service.Execute(ctx, "ops-admin", proposal.ID) }()
	select {
	case execErr := <-done:
		if execErr != nil {
			t.Fatalf("execute: %v", execErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("execute did not return")
	}
	if state, _ := service.ProposalState(ctx, proposal.ID); state != governance.StateExecuted {
		t.Fatalf("expected executed, got %s", state)
	}

	// The shortened period is visible on the next proposal's window.
	next, err := service.Propose(ctx, "alice", "governance.voting_period", "36h", "")
	if err != nil {
		t.Fatalf("second propose: %v", err)
	}
	if got := next.VotingEnd.Sub(next.VotingStart); got != 48*time.Hour {
		t.Fatalf("voting window %s, want 48h", got)
	}
}

func TestExecuteApplierFailureKeepsProposalQueued(t *testing.T) {
	service, _, clk := newGovernanceFixture(t)
	ctx := context.Background()

	calls := 0
	service.RegisterParam("exchange.fee_bps", func(string) error {
		calls++
		if calls == 1 {
			return errors.New("fee out of range")
		}
		return nil
	})
	stakeFor(t, service, "alice", 1000)

	proposal, err := service.Propose(ctx, "alice", "exchange.fee_bps", "25", "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	clk.Advance(time.Hour)
	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteFor); err != nil {
		t.Fatalf("vote: %v", err)
	}
	clk.Advance(72 * time.Hour)
	if _, err := service.Queue(ctx, proposal.ID); err != nil {
		t.Fatalf("queue: %v", err)
	}
	clk.Advance(24 * time.Hour)

	if err := service.Execute(ctx, "ops-admin", proposal.ID); err == nil {
		t.Fatal("expected applier failure to surface")
	}
	if state, _ := service.ProposalState(ctx, proposal.ID); state != governance.StateQueued {
		t.Fatalf("expected still queued after failed apply, got %s", state)
	}
	if err := service.Execute(ctx, "ops-admin", proposal.ID); err != nil {
		t.Fatalf("retry execute: %v", err)
	}
	if calls != 2 {
		t.Fatalf("applier ran %d times, want 2", calls)
	}
}

func TestQueueRequiresQuorumAndMajority(t *testing.T) {
	service, _, clk := newGovernanceFixture(t)
	ctx := context.Background()
	service.RegisterParam("exchange.fee_bps", func(string) error { return nil })

	// 100 of 5000 staked is 200 bps, under the 2000 bps quorum.
	stakeFor(t, service, "alice", 100)
	stakeFor(t, service, "bob", 4900)

	proposal, err := service.Propose(ctx, "alice", "exchange.fee_bps", "25", "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	clk.Advance(time.Hour)
	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteFor); err != nil {
		t.Fatalf("vote: %v", err)
	}
	clk.Advance(72 * time.Hour)
	if _, err := service.Queue(ctx, proposal.ID); !errors.Is(err, governance.ErrNotSucceeded) {
		t.Fatalf("expected quorum failure, got %v", err)
	}
	if state, _ := service.ProposalState(ctx, proposal.ID); state != governance.StateDefeated {
		t.Fatalf("expected defeated, got %s", state)
	}
}

func TestAbstainCountsTowardQuorum(t *testing.T) {
	service, _, clk := newGovernanceFixture(t)
	ctx := context.Background()
	service.RegisterParam("exchange.fee_bps", func(string) error { return nil })

	// 300 for-votes alone miss the 400-token quorum; 1700 abstaining
	// tokens carry the turnout over it without tipping the majority.
	stakeFor(t, service, "alice", 300)
	stakeFor(t, service, "bob", 1700)

	proposal, err := service.Propose(ctx, "alice", "exchange.fee_bps", "25", "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	clk.Advance(time.Hour)
	if err := service.CastVote(ctx, "alice", proposal.ID, governance.VoteFor); err != nil {
		t.Fatalf("vote for: %v", err)
	}
	if err := service.CastVote(ctx, "bob", proposal.ID, governance.VoteAbstain); err != nil {
		t.Fatalf("abstain: %v", err)
	}
	clk.Advance(72 * time.Hour)
	if _, err := service.Queue(ctx, proposal.ID); err != nil {
		t.Fatalf("queue: %v", err)
	}
}
