// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package token implements the confidential token engine.
//
// Every account carries a balance and a frozen amount, both opaque.
// Spendable value is balance minus frozen, floored at zero. Ordinary
// transfers clamp to zero when they exceed the spendable amount; only
// reverts listed in the reverts package reject an operation outright.
package token

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/authority"
	"github.com/veilfi/veil/ledger/compliance"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/log"
	"github.com/veilfi/veil/metrics"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

var (
	logger = log.WithContext("pkg", "token")

	metricOpCount = metrics.CounterVec("token_operation_count", []string{"kind"})
)

var (
	totalSupplyKey = veil.BytesToBytes32([]byte("total-supply"))
	pausedKey      = veil.BytesToBytes32([]byte("paused"))
)

func balanceKey(account veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256([]byte("balance"), account.Bytes()))
}

func frozenKey(account veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256([]byte("frozen"), account.Bytes()))
}

func operatorKey(holder, spender veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256([]byte("operator"), holder.Bytes(), spender.Bytes()))
}

// Token the confidential token engine.
type Token struct {
	addr    veil.Address
	state   *state.State
	auth    *authority.Authority
	gate    *compliance.Gate
	conf    *conf.Engine
	emitter events.Emitter
}

// New create a new instance.
func New(addr veil.Address, state *state.State, auth *authority.Authority, gate *compliance.Gate, conf *conf.Engine, emitter events.Emitter) *Token {
	return &Token{addr, state, auth, gate, conf, emitter}
}

// Address returns the engine address.
func (t *Token) Address() veil.Address { return t.addr }

func (t *Token) getAmount(key veil.Bytes32) (conf.Amount, error) {
	var h veil.Bytes32
	if err := t.state.GetStructuredStorage(t.addr, key, &h); err != nil {
		return conf.Amount{}, err
	}
	return conf.Amount(h), nil
}

func (t *Token) setAmount(key veil.Bytes32, a conf.Amount) error {
	return t.state.SetStructuredStorage(t.addr, key, a.Bytes32())
}

// BalanceOf returns the balance handle of account.
func (t *Token) BalanceOf(account veil.Address) (conf.Amount, error) {
	return t.getAmount(balanceKey(account))
}

// FrozenOf returns the frozen amount handle of account.
func (t *Token) FrozenOf(account veil.Address) (conf.Amount, error) {
	return t.getAmount(frozenKey(account))
}

// Available returns balance minus frozen, floored at zero. Freezing can
// exceed the balance; the excess simply pins available at zero.
func (t *Token) Available(account veil.Address) (conf.Amount, error) {
	balance, err := t.BalanceOf(account)
	if err != nil {
		return conf.Amount{}, err
	}
	frozen, err := t.FrozenOf(account)
	if err != nil {
		return conf.Amount{}, err
	}
	return t.conf.Sub(balance, t.conf.Min(balance, frozen)), nil
}

// TotalSupply returns the total supply handle.
func (t *Token) TotalSupply() (conf.Amount, error) {
	return t.getAmount(totalSupplyKey)
}

// Paused returns whether ordinary operations are blocked.
func (t *Token) Paused() (bool, error) {
	var paused bool
	if err := t.state.GetStructuredStorage(t.addr, pausedKey, &paused); err != nil {
		return false, err
	}
	return paused, nil
}

// Pause blocks mints, burns and ordinary transfers. Admin only.
// Forced transfers are never blocked.
func (t *Token) Pause(env *xenv.Environment) error {
	return t.setPaused(env, true, events.NamePaused)
}

// Unpause lifts a pause. Admin only.
func (t *Token) Unpause(env *xenv.Environment) error {
	return t.setPaused(env, false, events.NameUnpaused)
}

func (t *Token) setPaused(env *xenv.Environment, paused bool, eventName string) error {
	isAdmin, err := t.auth.Has(authority.RoleAdmin, env.Caller())
	if err != nil {
		return err
	}
	if !isAdmin {
		return reverts.ErrUnauthorizedSender
	}
	if err := t.state.SetStructuredStorage(t.addr, pausedKey, paused); err != nil {
		return err
	}
	logger.Info("pause state changed", "paused", paused)
	return t.emit(env, eventName)
}

func (t *Token) requireUnpaused() error {
	paused, err := t.Paused()
	if err != nil {
		return err
	}
	if paused {
		return reverts.ErrEnforcedPause
	}
	return nil
}

// SetOperator authorizes spender to transfer from the caller's account
// until the given unix timestamp. A past timestamp revokes.
func (t *Token) SetOperator(env *xenv.Environment, spender veil.Address, until uint64) error {
	return t.state.SetStructuredStorage(t.addr, operatorKey(env.Caller(), spender), until)
}

// IsOperator returns whether spender may currently move holder's funds.
func (t *Token) IsOperator(holder, spender veil.Address, now uint64) (bool, error) {
	if holder == spender {
		return true, nil
	}
	var until uint64
	if err := t.state.GetStructuredStorage(t.addr, operatorKey(holder, spender), &until); err != nil {
		return false, err
	}
	return until >= now, nil
}

// SetFrozen replaces account's frozen amount. Freezer role only.
// The new value may exceed the balance; available is floored at zero.
func (t *Token) SetFrozen(env *xenv.Environment, account veil.Address, amount conf.Amount) error {
	isFreezer, err := t.auth.Has(authority.RoleFreezer, env.Caller())
	if err != nil {
		return err
	}
	if !isFreezer {
		return reverts.ErrUnauthorizedSender
	}
	if err := t.setAmount(frozenKey(account), amount); err != nil {
		return err
	}
	t.conf.Allow(amount, account)
	t.conf.Allow(amount, env.Caller())
	return t.emit(env, events.NameTokensFrozen, events.AddressTopic(account), amount.Bytes32())
}

// Mint creates new tokens for to. Admin or agent only.
func (t *Token) Mint(env *xenv.Environment, to veil.Address, amount conf.Amount) (conf.Amount, error) {
	return t.guarded(func() (conf.Amount, error) {
		if err := t.requireManager(env.Caller()); err != nil {
			return conf.Amount{}, err
		}
		if to.IsZero() {
			return conf.Amount{}, reverts.ErrInvalidReceiver
		}
		if err := t.requireUnpaused(); err != nil {
			return conf.Amount{}, err
		}
		metricOpCount.AddWithLabel(1, map[string]string{"kind": "mint"})
		return t.update(env, veil.Address{}, to, amount, false)
	})
}

// Burn destroys tokens held by from, clamped to the balance. Admin or
// agent only.
func (t *Token) Burn(env *xenv.Environment, from veil.Address, amount conf.Amount) (conf.Amount, error) {
	return t.guarded(func() (conf.Amount, error) {
		if err := t.requireManager(env.Caller()); err != nil {
			return conf.Amount{}, err
		}
		if from.IsZero() {
			return conf.Amount{}, reverts.ErrInvalidSender
		}
		if err := t.requireUnpaused(); err != nil {
			return conf.Amount{}, err
		}
		metricOpCount.AddWithLabel(1, map[string]string{"kind": "burn"})
		return t.update(env, from, veil.Address{}, amount, false)
	})
}

// Transfer moves tokens from the caller to to. The effective amount is
// zero, not an error, when amount exceeds the caller's available
// balance or a compliance module denies the transfer.
func (t *Token) Transfer(env *xenv.Environment, to veil.Address, amount conf.Amount) (conf.Amount, error) {
	return t.guarded(func() (conf.Amount, error) {
		return t.transfer(env, env.Caller(), to, amount)
	})
}

// TransferFrom moves tokens on behalf of from. The caller must be an
// unexpired operator of from.
func (t *Token) TransferFrom(env *xenv.Environment, from, to veil.Address, amount conf.Amount) (conf.Amount, error) {
	return t.guarded(func() (conf.Amount, error) {
		isOperator, err := t.IsOperator(from, env.Caller(), env.BlockTime())
		if err != nil {
			return conf.Amount{}, err
		}
		if !isOperator {
			return conf.Amount{}, reverts.ErrUnauthorizedSpender
		}
		return t.transfer(env, from, to, amount)
	})
}

func (t *Token) transfer(env *xenv.Environment, from, to veil.Address, amount conf.Amount) (conf.Amount, error) {
	if from.IsZero() {
		return conf.Amount{}, reverts.ErrInvalidSender
	}
	if to.IsZero() {
		return conf.Amount{}, reverts.ErrInvalidReceiver
	}
	if err := t.requireUnpaused(); err != nil {
		return conf.Amount{}, err
	}
	metricOpCount.AddWithLabel(1, map[string]string{"kind": "transfer"})
	return t.update(env, from, to, amount, false)
}

// ForceTransfer moves tokens ignoring the frozen reservation, the pause
// switch and transfer-only compliance modules. Admin or agent only.
// The effective amount is capped at from's full balance, and frozen is
// reset to the new balance whenever the move drops below it.
func (t *Token) ForceTransfer(env *xenv.Environment, from, to veil.Address, amount conf.Amount) (conf.Amount, error) {
	return t.guarded(func() (conf.Amount, error) {
		if err := t.requireManager(env.Caller()); err != nil {
			return conf.Amount{}, err
		}
		if from.IsZero() {
			return conf.Amount{}, reverts.ErrInvalidSender
		}
		if to.IsZero() {
			return conf.Amount{}, reverts.ErrInvalidReceiver
		}
		metricOpCount.AddWithLabel(1, map[string]string{"kind": "force"})
		return t.update(env, from, to, amount, true)
	})
}

func (t *Token) requireManager(caller veil.Address) error {
	isManager, err := t.auth.IsManager(caller)
	if err != nil {
		return err
	}
	if !isManager {
		return reverts.ErrUnauthorizedSender
	}
	return nil
}

// guarded runs op under a state checkpoint and rolls every write back
// on a revert or state error.
func (t *Token) guarded(op func() (conf.Amount, error)) (conf.Amount, error) {
	chk := t.state.NewCheckpoint()
	effective, err := op()
	if err != nil {
		t.state.RevertTo(chk)
		return conf.Amount{}, err
	}
	return effective, nil
}

// update is the single balance mutation path shared by mint, burn,
// transfer and forced transfer. A zero from mints; a zero to burns.
// A sender that never held tokens is rejected outright.
//
// Compliance is consulted on the requested amount. On denial the
// mutation is skipped entirely and the transfer event fires with a zero
// amount. On approval the amount is clamped: ordinary sends clamp to
// zero past the available balance, burns and forced sends cap at the
// full balance. The clamped amount is what hooks and the event see.
func (t *Token) update(env *xenv.Environment, from, to veil.Address, amount conf.Amount, forced bool) (conf.Amount, error) {
	if !from.IsZero() {
		balance, err := t.BalanceOf(from)
		if err != nil {
			return conf.Amount{}, err
		}
		// an account that never held tokens has no balance handle
		if balance.IsZeroHandle() {
			return conf.Amount{}, reverts.ErrZeroBalance
		}
	}

	allowed, err := t.gate.Check(env, from, to, amount, forced)
	if err != nil {
		return conf.Amount{}, err
	}

	effective := t.conf.Zero()
	if allowed {
		effective = amount
		if !from.IsZero() {
			balance, err := t.BalanceOf(from)
			if err != nil {
				return conf.Amount{}, err
			}
			if forced || to.IsZero() {
				effective = t.conf.Min(amount, balance)
			} else {
				available, err := t.Available(from)
				if err != nil {
					return conf.Amount{}, err
				}
				effective = t.conf.Select(t.conf.Le(amount, available), amount, t.conf.Zero())
			}
		}

		if err := t.gate.RunPreHooks(env, from, to, effective, forced); err != nil {
			return conf.Amount{}, err
		}
		if err := t.move(env, from, to, effective, forced); err != nil {
			return conf.Amount{}, err
		}
		if err := t.gate.RunPostHooks(env, from, to, effective, forced); err != nil {
			return conf.Amount{}, err
		}
	} else {
		logger.Debug("transfer denied by compliance", "from", from, "to", to)
	}

	if !from.IsZero() {
		t.conf.Allow(effective, from)
	}
	if !to.IsZero() {
		t.conf.Allow(effective, to)
	}
	if err := t.emit(env, events.NameTransfer,
		events.AddressTopic(from), events.AddressTopic(to), effective.Bytes32()); err != nil {
		return conf.Amount{}, err
	}
	return effective, nil
}

// move applies the balance and supply deltas for an approved, clamped
// amount.
func (t *Token) move(env *xenv.Environment, from, to veil.Address, effective conf.Amount, forced bool) error {
	if from.IsZero() {
		supply, err := t.TotalSupply()
		if err != nil {
			return err
		}
		if err := t.setAmount(totalSupplyKey, t.conf.Add(supply, effective)); err != nil {
			return err
		}
	} else {
		balance, err := t.BalanceOf(from)
		if err != nil {
			return err
		}
		newBalance := t.conf.Sub(balance, effective)
		t.conf.Allow(newBalance, from)
		if err := t.setAmount(balanceKey(from), newBalance); err != nil {
			return err
		}
		if forced {
			// frozen never exceeds balance after a forced move
			frozen, err := t.FrozenOf(from)
			if err != nil {
				return err
			}
			newFrozen := t.conf.Min(frozen, newBalance)
			t.conf.Allow(newFrozen, from)
			if err := t.setAmount(frozenKey(from), newFrozen); err != nil {
				return err
			}
			if err := t.emit(env, events.NameTokensFrozen,
				events.AddressTopic(from), newFrozen.Bytes32()); err != nil {
				return err
			}
		}
	}

	if to.IsZero() {
		supply, err := t.TotalSupply()
		if err != nil {
			return err
		}
		if err := t.setAmount(totalSupplyKey, t.conf.Sub(supply, effective)); err != nil {
			return err
		}
	} else {
		balance, err := t.BalanceOf(to)
		if err != nil {
			return err
		}
		newBalance := t.conf.Add(balance, effective)
		t.conf.Allow(newBalance, to)
		if err := t.setAmount(balanceKey(to), newBalance); err != nil {
			return err
		}
	}
	return nil
}

func (t *Token) emit(env *xenv.Environment, name string, topics ...veil.Bytes32) error {
	return t.emitter.Emit(&events.Event{
		BlockNumber: env.BlockNumber(),
		BlockTime:   env.BlockTime(),
		Engine:      t.addr,
		Name:        name,
		Topics:      topics,
	})
}
