// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/authority"
	"github.com/veilfi/veil/ledger/compliance"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/params"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/ledger/token"
	"github.com/veilfi/veil/lvldb"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

var (
	admin = veil.BytesToAddress([]byte("admin"))
	s1    = veil.BytesToAddress([]byte("staker1"))
	s2    = veil.BytesToAddress([]byte("staker2"))
)

type fixture struct {
	rewards *Rewards
	token   *token.Token
	conf    *conf.Engine
	journal *events.MemJournal
}

// newFixture funds s1 and s2 and approves the engine as their operator.
func newFixture(t *testing.T) *fixture {
	db, _ := lvldb.NewMem()
	st := state.New(db)

	auth := authority.New(veil.BytesToAddress([]byte("authority")), st)
	require.NoError(t, auth.Bootstrap(admin))

	ce := conf.NewEngine()
	journal := &events.MemJournal{}
	gate := compliance.New(veil.BytesToAddress([]byte("gate")), st, auth, ce, journal)
	tok := token.New(veil.BytesToAddress([]byte("token")), st, auth, gate, ce, journal)
	prm := params.New(veil.BytesToAddress([]byte("params")), st)
	rw := New(veil.BytesToAddress([]byte("rewards")), st, auth, prm, ce, tok, journal)

	adminEnv := xenv.New(1, 10, admin)
	for _, staker := range []veil.Address{s1, s2} {
		_, err := tok.Mint(adminEnv, staker, ce.Encrypt(admin, 10_000))
		require.NoError(t, err)
		require.NoError(t, tok.SetOperator(xenv.New(1, 10, staker), rw.Address(), 1<<62))
	}
	return &fixture{rw, tok, ce, journal}
}

func (fx *fixture) balance(t *testing.T, account veil.Address) uint64 {
	h, err := fx.token.BalanceOf(account)
	require.NoError(t, err)
	v, err := fx.conf.Decrypt(h, account)
	require.NoError(t, err)
	return v
}

func (fx *fixture) setRate(t *testing.T, block, rate uint64) {
	require.NoError(t, fx.rewards.SetRewardRate(xenv.New(block, block*10, admin), rate))
}

func (fx *fixture) addOperator(t *testing.T, block uint64, account veil.Address) {
	require.NoError(t, fx.rewards.AddOperator(xenv.New(block, block*10, admin), account))
}

func TestRewardSplitProportionality(t *testing.T) {
	fx := newFixture(t)
	fx.setRate(t, 1, 110)
	fx.addOperator(t, 1, s1)
	fx.addOperator(t, 1, s2)

	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 100))
	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s2), 1000))

	total, err := fx.rewards.TotalStaked()
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), total)

	// 9 identical blocks at rate 110
	e1, err := fx.rewards.Earned(s1, 10)
	require.NoError(t, err)
	e2, err := fx.rewards.Earned(s2, 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(90), e1)
	assert.Equal(t, uint64(900), e2)
	assert.Equal(t, uint64(9*110), e1+e2)
}

func TestNonOperatorForfeiture(t *testing.T) {
	fx := newFixture(t)
	fx.setRate(t, 1, 50)

	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 100))

	e, err := fx.rewards.Earned(s1, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), e)

	// a mutating call at block 100 commits the same zero
	require.NoError(t, fx.rewards.Unstake(xenv.New(100, 1000, s1), 50))
	e, _ = fx.rewards.Earned(s1, 100)
	assert.Equal(t, uint64(0), e)
}

func TestOperatorAdmissionSettlesFirst(t *testing.T) {
	fx := newFixture(t)
	fx.setRate(t, 1, 50)

	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 100))

	// blocks 1..5 are forfeited, credit starts at admission
	fx.addOperator(t, 5, s1)

	e, err := fx.rewards.Earned(s1, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(4*50), e)
}

func TestRateChangeBoundary(t *testing.T) {
	fx := newFixture(t)
	fx.setRate(t, 1, 100)
	fx.addOperator(t, 1, s1)

	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 100))

	// rate change settles the old rate up to block 5
	fx.setRate(t, 5, 10)

	e, err := fx.rewards.Earned(s1, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(4*100+4*10), e)
}

func TestUnstakeImmediate(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 400))
	assert.Equal(t, uint64(9600), fx.balance(t, s1))

	// zero cooldown pays out at once
	require.NoError(t, fx.rewards.Unstake(xenv.New(2, 20, s1), 400))
	assert.Equal(t, uint64(10_000), fx.balance(t, s1))

	staked, _ := fx.rewards.Staked(s1)
	assert.Equal(t, uint64(0), staked)
}

func TestUnstakeCooldown(t *testing.T) {
	fx := newFixture(t)
	adminEnv := xenv.New(1, 10, admin)
	require.NoError(t, fx.rewards.SetCooldownPeriod(adminEnv, 100))

	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 400))
	require.NoError(t, fx.rewards.Unstake(xenv.New(2, 20, s1), 400))

	// principal stays in custody until the cooldown matures
	assert.Equal(t, uint64(9600), fx.balance(t, s1))
	amount, availableAt, err := fx.rewards.PendingRelease(s1)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), amount)
	assert.Equal(t, uint64(120), availableAt)

	// early release is a no-op
	require.NoError(t, fx.rewards.Release(xenv.New(3, 119, s1)))
	assert.Equal(t, uint64(9600), fx.balance(t, s1))

	require.NoError(t, fx.rewards.Release(xenv.New(4, 120, s1)))
	assert.Equal(t, uint64(10_000), fx.balance(t, s1))

	// repeated release after payout stays a no-op
	require.NoError(t, fx.rewards.Release(xenv.New(5, 130, s1)))
	assert.Equal(t, uint64(10_000), fx.balance(t, s1))
	assert.Len(t, fx.journal.Filter(events.NameUnstakeReleased), 1)
}

func TestUnstakeInsufficient(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 100))
	err := fx.rewards.Unstake(xenv.New(2, 20, s1), 101)
	assert.ErrorIs(t, err, reverts.ErrInsufficientStake)
}

func TestStakeRequiresFunds(t *testing.T) {
	fx := newFixture(t)
	err := fx.rewards.Stake(xenv.New(1, 10, s1), 10_001)
	assert.ErrorIs(t, err, reverts.ErrInsufficientBalance)

	// the failed pull left no stake behind
	staked, _ := fx.rewards.Staked(s1)
	assert.Equal(t, uint64(0), staked)
}

func TestClaimRewards(t *testing.T) {
	fx := newFixture(t)
	fx.setRate(t, 1, 10)
	fx.addOperator(t, 1, s1)

	// fund the reward pool
	adminEnv := xenv.New(1, 10, admin)
	_, err := fx.token.Mint(adminEnv, fx.rewards.Address(), fx.conf.Encrypt(admin, 1000))
	require.NoError(t, err)

	require.NoError(t, fx.rewards.Stake(xenv.New(1, 10, s1), 100))

	require.NoError(t, fx.rewards.ClaimRewards(xenv.New(11, 110, s1)))
	assert.Equal(t, uint64(10_000-100+100), fx.balance(t, s1))

	e, _ := fx.rewards.Earned(s1, 11)
	assert.Equal(t, uint64(0), e)
	assert.Len(t, fx.journal.Filter(events.NameRewardsClaimed), 1)
}

func TestSetRewardRateRequiresAdmin(t *testing.T) {
	fx := newFixture(t)
	err := fx.rewards.SetRewardRate(xenv.New(1, 10, s1), 5)
	assert.ErrorIs(t, err, reverts.ErrUnauthorizedSender)
	err = fx.rewards.AddOperator(xenv.New(1, 10, s1), s1)
	assert.ErrorIs(t, err, reverts.ErrUnauthorizedSender)
}
