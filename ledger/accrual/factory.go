// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accrual

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

// Factory deploys vesting wallets at deterministic addresses. Predict
// and create share one salt-to-address mapping, so a wallet address can
// be funded before the wallet exists.
type Factory struct {
	addr    veil.Address
	state   *state.State
	conf    *conf.Engine
	emitter events.Emitter
}

// NewFactory create a new instance.
func NewFactory(addr veil.Address, state *state.State, conf *conf.Engine, emitter events.Emitter) *Factory {
	return &Factory{addr, state, conf, emitter}
}

func walletKey(wallet veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256([]byte("wallet"), wallet.Bytes()))
}

func salt(beneficiary, executor veil.Address, sched *Schedule) veil.Bytes32 {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:], sched.Start)
	binary.BigEndian.PutUint64(buf[8:], sched.Duration)
	binary.BigEndian.PutUint64(buf[16:], sched.Cliff)
	return veil.BytesToBytes32(crypto.Keccak256(beneficiary.Bytes(), executor.Bytes(), buf[:]))
}

// PredictAddress returns the address CreateWallet would deploy to for
// the same arguments.
func (f *Factory) PredictAddress(beneficiary, executor veil.Address, sched *Schedule) veil.Address {
	return veil.CreateVaultAddress(f.addr, salt(beneficiary, executor, sched))
}

// Exists reports whether a wallet was created at addr by this factory.
func (f *Factory) Exists(addr veil.Address) (bool, error) {
	var exists bool
	if err := f.state.GetStructuredStorage(f.addr, walletKey(addr), &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateWallet deploys and initializes a wallet at the predicted
// address. A second create with the same arguments fails with the
// already-exists error and leaves the first wallet untouched.
func (f *Factory) CreateWallet(env *xenv.Environment, beneficiary, executor veil.Address, sched *Schedule) (*Wallet, error) {
	addr := f.PredictAddress(beneficiary, executor, sched)
	exists, err := f.Exists(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, reverts.ErrWalletAlreadyExists
	}

	chk := f.state.NewCheckpoint()
	wallet := NewWallet(addr, f.state, f.conf, f.emitter)
	if err := wallet.Initialize(beneficiary, executor, sched); err != nil {
		f.state.RevertTo(chk)
		return nil, err
	}
	if err := f.state.SetStructuredStorage(f.addr, walletKey(addr), true); err != nil {
		f.state.RevertTo(chk)
		return nil, err
	}
	if err := f.emitter.Emit(&events.Event{
		BlockNumber: env.BlockNumber(),
		BlockTime:   env.BlockTime(),
		Engine:      f.addr,
		Name:        events.NameWalletCreated,
		Topics:      []veil.Bytes32{events.AddressTopic(addr), events.AddressTopic(beneficiary)},
	}); err != nil {
		f.state.RevertTo(chk)
		return nil, err
	}
	return wallet, nil
}

// Wallet returns the wallet engine at addr, if this factory created it.
func (f *Factory) Wallet(addr veil.Address) (*Wallet, error) {
	exists, err := f.Exists(addr)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, reverts.ErrInvalidInitialization
	}
	return NewWallet(addr, f.state, f.conf, f.emitter), nil
}
