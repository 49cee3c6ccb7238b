// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rewards implements stake-weighted reward distribution.
//
// A global accumulator integrates reward-per-unit-stake over blocks and
// is brought up to date lazily at the start of every mutating call, in
// that strict order: accumulate first, then apply the call's delta.
// Accounts snapshot the accumulator on every interaction; accounts
// outside the operator set take the snapshot without being credited, so
// they forfeit the interval's reward.
package rewards

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/authority"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/params"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/log"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

var logger = log.WithContext("pkg", "rewards")

// precision is the fixed-point scale of the accumulator.
var precision = uint256.MustFromBig(veil.AccrualPrecision)

// Vault is the token capability the engine needs: custody of staked
// principal and payout transfers.
type Vault interface {
	BalanceOf(account veil.Address) (conf.Amount, error)
	Transfer(env *xenv.Environment, to veil.Address, amount conf.Amount) (conf.Amount, error)
	TransferFrom(env *xenv.Environment, from, to veil.Address, amount conf.Amount) (conf.Amount, error)
}

var globalKey = veil.BytesToBytes32([]byte("global"))

func stakerKey(account veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256([]byte("staker"), account.Bytes()))
}

func operatorKey(account veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256([]byte("operator"), account.Bytes()))
}

type globalState struct {
	TotalStaked     uint64
	LastUpdateBlock uint64
	RewardPerToken  veil.Bytes32 // 1e18 fixed point
}

type stakerState struct {
	Staked             uint64
	Paid               veil.Bytes32 // accumulator snapshot, 1e18 fixed point
	Earned             uint64
	PendingAmount      uint64
	PendingAvailableAt uint64
}

// Rewards the reward accumulator engine.
type Rewards struct {
	addr    veil.Address
	state   *state.State
	auth    *authority.Authority
	params  *params.Params
	conf    *conf.Engine
	token   Vault
	emitter events.Emitter
}

// New create a new instance.
func New(addr veil.Address, state *state.State, auth *authority.Authority, params *params.Params, conf *conf.Engine, token Vault, emitter events.Emitter) *Rewards {
	return &Rewards{addr, state, auth, params, conf, token, emitter}
}

// Address returns the engine address.
func (r *Rewards) Address() veil.Address { return r.addr }

func (r *Rewards) global() (*globalState, error) {
	var g globalState
	if err := r.state.GetStructuredStorage(r.addr, globalKey, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Rewards) staker(account veil.Address) (*stakerState, error) {
	var s stakerState
	if err := r.state.GetStructuredStorage(r.addr, stakerKey(account), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RewardRate returns the reward units distributed per block.
func (r *Rewards) RewardRate() (uint64, error) {
	v, err := r.params.Get(veil.KeyRewardRate)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// CooldownPeriod returns the unstake cooldown in seconds.
func (r *Rewards) CooldownPeriod() (uint64, error) {
	v, err := r.params.Get(veil.KeyCooldownPeriod)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// IsOperator returns whether account is credited rewards.
func (r *Rewards) IsOperator(account veil.Address) (bool, error) {
	var operator bool
	if err := r.state.GetStructuredStorage(r.addr, operatorKey(account), &operator); err != nil {
		return false, err
	}
	return operator, nil
}

// Staked returns account's staked amount.
func (r *Rewards) Staked(account veil.Address) (uint64, error) {
	s, err := r.staker(account)
	if err != nil {
		return 0, err
	}
	return s.Staked, nil
}

// TotalStaked returns the total staked amount.
func (r *Rewards) TotalStaked() (uint64, error) {
	g, err := r.global()
	if err != nil {
		return 0, err
	}
	return g.TotalStaked, nil
}

// PendingRelease returns the amount awaiting cooldown and when it
// unlocks.
func (r *Rewards) PendingRelease(account veil.Address) (amount, availableAt uint64, err error) {
	s, err := r.staker(account)
	if err != nil {
		return 0, 0, err
	}
	return s.PendingAmount, s.PendingAvailableAt, nil
}

// accumulate projects the accumulator to block. Pure; commit is the
// caller's job.
func (r *Rewards) accumulate(g *globalState, block uint64) (*uint256.Int, error) {
	rpt := new(uint256.Int).SetBytes32(g.RewardPerToken[:])
	if g.TotalStaked == 0 || block <= g.LastUpdateBlock {
		return rpt, nil
	}
	rate, err := r.RewardRate()
	if err != nil {
		return nil, err
	}
	delta := uint256.NewInt(block - g.LastUpdateBlock)
	delta.Mul(delta, uint256.NewInt(rate))
	delta.Mul(delta, precision)
	delta.Div(delta, uint256.NewInt(g.TotalStaked))
	return rpt.Add(rpt, delta), nil
}

func pendingOf(s *stakerState, rpt *uint256.Int) uint64 {
	paid := new(uint256.Int).SetBytes32(s.Paid[:])
	owed := new(uint256.Int).Sub(rpt, paid)
	owed.Mul(owed, uint256.NewInt(s.Staked))
	owed.Div(owed, precision)
	return owed.Uint64()
}

// updateReward commits the lazy accumulator step for account. Must run
// before any stake-affecting delta of the same call.
func (r *Rewards) updateReward(env *xenv.Environment, account veil.Address) (*globalState, *stakerState, error) {
	g, err := r.global()
	if err != nil {
		return nil, nil, err
	}
	rpt, err := r.accumulate(g, env.BlockNumber())
	if err != nil {
		return nil, nil, err
	}
	g.RewardPerToken = veil.Bytes32(rpt.Bytes32())
	g.LastUpdateBlock = env.BlockNumber()

	s, err := r.staker(account)
	if err != nil {
		return nil, nil, err
	}
	if !account.IsZero() {
		pending := pendingOf(s, rpt)
		operator, err := r.IsOperator(account)
		if err != nil {
			return nil, nil, err
		}
		if operator {
			s.Earned += pending
		}
		// snapshot regardless; non-operators forfeit the interval
		s.Paid = veil.Bytes32(rpt.Bytes32())
	}
	return g, s, nil
}

func (r *Rewards) commit(account veil.Address, g *globalState, s *stakerState) error {
	if err := r.state.SetStructuredStorage(r.addr, globalKey, g); err != nil {
		return err
	}
	if account.IsZero() {
		return nil
	}
	return r.state.SetStructuredStorage(r.addr, stakerKey(account), s)
}

// Earned projects account's claimable reward at the given block without
// mutating state. Matches what a mutating call at the same block would
// commit.
func (r *Rewards) Earned(account veil.Address, block uint64) (uint64, error) {
	g, err := r.global()
	if err != nil {
		return 0, err
	}
	rpt, err := r.accumulate(g, block)
	if err != nil {
		return 0, err
	}
	s, err := r.staker(account)
	if err != nil {
		return 0, err
	}
	operator, err := r.IsOperator(account)
	if err != nil {
		return 0, err
	}
	if !operator {
		return s.Earned, nil
	}
	return s.Earned + pendingOf(s, rpt), nil
}

// Stake pulls amount of the underlying token into the engine's custody
// and credits it as stake. The staker must have approved the engine as
// operator; an unfunded pull is rejected rather than clamped.
func (r *Rewards) Stake(env *xenv.Environment, amount uint64) error {
	return r.guarded(func() error {
		staker := env.Caller()
		g, s, err := r.updateReward(env, staker)
		if err != nil {
			return err
		}

		effective, err := r.token.TransferFrom(env.WithCaller(r.addr), staker, r.addr, r.conf.Encrypt(r.addr, amount))
		if err != nil {
			return err
		}
		moved, err := r.conf.Decrypt(effective, r.addr)
		if err != nil {
			return err
		}
		if moved != amount {
			return reverts.ErrInsufficientBalance
		}

		s.Staked += amount
		g.TotalStaked += amount
		if err := r.commit(staker, g, s); err != nil {
			return err
		}
		return r.emit(env, events.NameTokensStaked, events.AddressTopic(staker), effective.Bytes32())
	})
}

// Unstake removes amount from account's stake. With a zero cooldown the
// principal pays out immediately; otherwise it parks in a pending
// release that unlocks cooldown seconds from now. Unstaking more than
// staked is rejected.
func (r *Rewards) Unstake(env *xenv.Environment, amount uint64) error {
	return r.guarded(func() error {
		staker := env.Caller()
		g, s, err := r.updateReward(env, staker)
		if err != nil {
			return err
		}
		if amount > s.Staked {
			return reverts.ErrInsufficientStake
		}
		s.Staked -= amount
		g.TotalStaked -= amount

		cooldown, err := r.CooldownPeriod()
		if err != nil {
			return err
		}
		if cooldown == 0 {
			if err := r.payout(env, staker, amount); err != nil {
				return err
			}
		} else {
			s.PendingAmount += amount
			s.PendingAvailableAt = env.BlockTime() + cooldown
		}
		if err := r.commit(staker, g, s); err != nil {
			return err
		}
		return r.emit(env, events.NameTokensUnstaked, events.AddressTopic(staker))
	})
}

// Release pays out a matured pending release. Calling early, or with
// nothing pending, is a no-op.
func (r *Rewards) Release(env *xenv.Environment) error {
	return r.guarded(func() error {
		staker := env.Caller()
		s, err := r.staker(staker)
		if err != nil {
			return err
		}
		if s.PendingAmount == 0 || env.BlockTime() < s.PendingAvailableAt {
			return nil
		}
		amount := s.PendingAmount
		s.PendingAmount = 0
		s.PendingAvailableAt = 0
		if err := r.payout(env, staker, amount); err != nil {
			return err
		}
		if err := r.state.SetStructuredStorage(r.addr, stakerKey(staker), s); err != nil {
			return err
		}
		return r.emit(env, events.NameUnstakeReleased, events.AddressTopic(staker))
	})
}

// ClaimRewards pays out account's earned rewards from the engine's
// reward pool and zeroes the tally.
func (r *Rewards) ClaimRewards(env *xenv.Environment) error {
	return r.guarded(func() error {
		staker := env.Caller()
		g, s, err := r.updateReward(env, staker)
		if err != nil {
			return err
		}
		amount := s.Earned
		if amount == 0 {
			return r.commit(staker, g, s)
		}
		s.Earned = 0
		if err := r.payout(env, staker, amount); err != nil {
			return err
		}
		if err := r.commit(staker, g, s); err != nil {
			return err
		}
		return r.emit(env, events.NameRewardsClaimed, events.AddressTopic(staker))
	})
}

// payout sends amount from the engine's custody; a clamped send means
// the pool cannot cover it, which rejects the whole call.
func (r *Rewards) payout(env *xenv.Environment, to veil.Address, amount uint64) error {
	effective, err := r.token.Transfer(env.WithCaller(r.addr), to, r.conf.Encrypt(r.addr, amount))
	if err != nil {
		return err
	}
	moved, err := r.conf.Decrypt(effective, r.addr)
	if err != nil {
		return err
	}
	if moved != amount {
		return reverts.ErrInsufficientBalance
	}
	return nil
}

// SetRewardRate changes the per-block reward rate. Admin only. The
// accumulator is settled first so no reward computed under the old rate
// leaks past the change point.
func (r *Rewards) SetRewardRate(env *xenv.Environment, rate uint64) error {
	return r.guarded(func() error {
		if err := r.requireAdmin(env.Caller()); err != nil {
			return err
		}
		g, s, err := r.updateReward(env, veil.Address{})
		if err != nil {
			return err
		}
		if err := r.commit(veil.Address{}, g, s); err != nil {
			return err
		}
		logger.Info("reward rate changed", "rate", rate)
		return r.params.Set(veil.KeyRewardRate, newBig(rate))
	})
}

// SetCooldownPeriod changes the unstake cooldown. Admin only.
func (r *Rewards) SetCooldownPeriod(env *xenv.Environment, seconds uint64) error {
	return r.guarded(func() error {
		if err := r.requireAdmin(env.Caller()); err != nil {
			return err
		}
		return r.params.Set(veil.KeyCooldownPeriod, newBig(seconds))
	})
}

// AddOperator admits account to the operator set. Admin only. The
// account's snapshot is settled first, so rewards from intervals before
// admission stay forfeited.
func (r *Rewards) AddOperator(env *xenv.Environment, account veil.Address) error {
	return r.setOperator(env, account, true)
}

// RemoveOperator evicts account from the operator set. Admin only.
// Rewards credited so far stay claimable.
func (r *Rewards) RemoveOperator(env *xenv.Environment, account veil.Address) error {
	return r.setOperator(env, account, false)
}

func (r *Rewards) setOperator(env *xenv.Environment, account veil.Address, operator bool) error {
	return r.guarded(func() error {
		if err := r.requireAdmin(env.Caller()); err != nil {
			return err
		}
		g, s, err := r.updateReward(env, account)
		if err != nil {
			return err
		}
		if err := r.commit(account, g, s); err != nil {
			return err
		}
		return r.state.SetStructuredStorage(r.addr, operatorKey(account), operator)
	})
}

func newBig(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func (r *Rewards) requireAdmin(caller veil.Address) error {
	isAdmin, err := r.auth.Has(authority.RoleAdmin, caller)
	if err != nil {
		return err
	}
	if !isAdmin {
		return reverts.ErrUnauthorizedSender
	}
	return nil
}

func (r *Rewards) guarded(op func() error) error {
	chk := r.state.NewCheckpoint()
	if err := op(); err != nil {
		r.state.RevertTo(chk)
		return err
	}
	return nil
}

func (r *Rewards) emit(env *xenv.Environment, name string, topics ...veil.Bytes32) error {
	return r.emitter.Emit(&events.Event{
		BlockNumber: env.BlockNumber(),
		BlockTime:   env.BlockTime(),
		Engine:      r.addr,
		Name:        name,
		Topics:      topics,
	})
}
