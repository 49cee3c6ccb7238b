// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accrual

import (
	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

// Transferor is the token capability a wallet needs: read its own
// balance and send from the caller's account.
type Transferor interface {
	BalanceOf(account veil.Address) (conf.Amount, error)
	Transfer(env *xenv.Environment, to veil.Address, amount conf.Amount) (conf.Amount, error)
}

var (
	initializedKey = veil.BytesToBytes32([]byte("initialized"))
	beneficiaryKey = veil.BytesToBytes32([]byte("beneficiary"))
	executorKey    = veil.BytesToBytes32([]byte("executor"))
	scheduleKey    = veil.BytesToBytes32([]byte("schedule"))
	releasedKey    = veil.BytesToBytes32([]byte("released"))
)

// Wallet a vesting wallet engine. Tokens held at the wallet address
// vest to the beneficiary along the schedule; anything sent to the
// wallet later joins the same schedule.
type Wallet struct {
	addr    veil.Address
	state   *state.State
	conf    *conf.Engine
	emitter events.Emitter
}

// NewWallet create a wallet engine at addr.
func NewWallet(addr veil.Address, state *state.State, conf *conf.Engine, emitter events.Emitter) *Wallet {
	return &Wallet{addr, state, conf, emitter}
}

// Address returns the wallet address.
func (w *Wallet) Address() veil.Address { return w.addr }

// Initialized reports whether Initialize has run.
func (w *Wallet) Initialized() (bool, error) {
	var initialized bool
	if err := w.state.GetStructuredStorage(w.addr, initializedKey, &initialized); err != nil {
		return false, err
	}
	return initialized, nil
}

// Initialize binds beneficiary, executor and schedule. Runs exactly
// once; a second call fails with the already-initialized error.
func (w *Wallet) Initialize(beneficiary, executor veil.Address, sched *Schedule) error {
	initialized, err := w.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		return reverts.ErrInvalidInitialization
	}
	if err := w.state.SetStructuredStorage(w.addr, initializedKey, true); err != nil {
		return err
	}
	if err := w.state.SetStructuredStorage(w.addr, beneficiaryKey, beneficiary); err != nil {
		return err
	}
	if err := w.state.SetStructuredStorage(w.addr, executorKey, executor); err != nil {
		return err
	}
	return w.state.SetStructuredStorage(w.addr, scheduleKey, sched)
}

// Beneficiary returns the vesting beneficiary.
func (w *Wallet) Beneficiary() (veil.Address, error) {
	var beneficiary veil.Address
	err := w.state.GetStructuredStorage(w.addr, beneficiaryKey, &beneficiary)
	return beneficiary, err
}

// Executor returns the account allowed to route calls through the
// wallet.
func (w *Wallet) Executor() (veil.Address, error) {
	var executor veil.Address
	err := w.state.GetStructuredStorage(w.addr, executorKey, &executor)
	return executor, err
}

// Schedule returns the wallet's release schedule.
func (w *Wallet) Schedule() (*Schedule, error) {
	var sched Schedule
	if err := w.state.GetStructuredStorage(w.addr, scheduleKey, &sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

// Released returns the handle of the amount released so far.
func (w *Wallet) Released() (conf.Amount, error) {
	var h veil.Bytes32
	if err := w.state.GetStructuredStorage(w.addr, releasedKey, &h); err != nil {
		return conf.Amount{}, err
	}
	return conf.Amount(h), nil
}

// Release transfers the vested-but-unreleased delta to the beneficiary
// and records it. A zero delta, including repeated calls at the same
// timestamp, is a no-op rather than an error.
func (w *Wallet) Release(env *xenv.Environment, tok Transferor) (conf.Amount, error) {
	chk := w.state.NewCheckpoint()
	effective, err := w.release(env, tok)
	if err != nil {
		w.state.RevertTo(chk)
		return conf.Amount{}, err
	}
	return effective, nil
}

func (w *Wallet) release(env *xenv.Environment, tok Transferor) (conf.Amount, error) {
	initialized, err := w.Initialized()
	if err != nil {
		return conf.Amount{}, err
	}
	if !initialized {
		return conf.Amount{}, reverts.ErrInvalidInitialization
	}

	sched, err := w.Schedule()
	if err != nil {
		return conf.Amount{}, err
	}
	beneficiary, err := w.Beneficiary()
	if err != nil {
		return conf.Amount{}, err
	}
	balance, err := tok.BalanceOf(w.addr)
	if err != nil {
		return conf.Amount{}, err
	}
	released, err := w.Released()
	if err != nil {
		return conf.Amount{}, err
	}

	// total vestable includes what already left the wallet
	total := w.conf.Add(balance, released)
	vested := sched.VestedAmount(w.conf, total, env.BlockTime())
	delta := w.conf.Sub(vested, released)

	// the transfer may clamp; only what actually moved counts as released
	effective, err := tok.Transfer(env.WithCaller(w.addr), beneficiary, delta)
	if err != nil {
		return conf.Amount{}, err
	}
	newReleased := w.conf.Add(released, effective)
	w.conf.Allow(newReleased, beneficiary)
	if err := w.state.SetStructuredStorage(w.addr, releasedKey, newReleased.Bytes32()); err != nil {
		return conf.Amount{}, err
	}
	if err := w.emitter.Emit(&events.Event{
		BlockNumber: env.BlockNumber(),
		BlockTime:   env.BlockTime(),
		Engine:      w.addr,
		Name:        events.NameVestingReleased,
		Topics:      []veil.Bytes32{events.AddressTopic(beneficiary), effective.Bytes32()},
	}); err != nil {
		return conf.Amount{}, err
	}
	return effective, nil
}

// Call runs action as the wallet. Executor only.
func (w *Wallet) Call(env *xenv.Environment, action func(*xenv.Environment) error) error {
	executor, err := w.Executor()
	if err != nil {
		return err
	}
	if env.Caller() != executor {
		return reverts.ErrAccountUnauthorized
	}
	return action(env.WithCaller(w.addr))
}
