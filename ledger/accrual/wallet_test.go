// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accrual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/authority"
	"github.com/veilfi/veil/ledger/compliance"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/ledger/token"
	"github.com/veilfi/veil/lvldb"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

var (
	admin       = veil.BytesToAddress([]byte("admin"))
	beneficiary = veil.BytesToAddress([]byte("beneficiary"))
	executor    = veil.BytesToAddress([]byte("executor"))
)

type fixture struct {
	token   *token.Token
	conf    *conf.Engine
	st      *state.State
	journal *events.MemJournal
}

func newFixture(t *testing.T) *fixture {
	db, _ := lvldb.NewMem()
	st := state.New(db)

	auth := authority.New(veil.BytesToAddress([]byte("authority")), st)
	require.NoError(t, auth.Bootstrap(admin))

	ce := conf.NewEngine()
	journal := &events.MemJournal{}
	gate := compliance.New(veil.BytesToAddress([]byte("gate")), st, auth, ce, journal)
	tok := token.New(veil.BytesToAddress([]byte("token")), st, auth, gate, ce, journal)
	return &fixture{tok, ce, st, journal}
}

func (fx *fixture) balance(t *testing.T, account veil.Address) uint64 {
	h, err := fx.token.BalanceOf(account)
	require.NoError(t, err)
	v, err := fx.conf.Decrypt(h, account)
	require.NoError(t, err)
	return v
}

func (fx *fixture) newWallet(t *testing.T, sched *Schedule, funding uint64) *Wallet {
	wallet := NewWallet(veil.BytesToAddress([]byte("wallet")), fx.st, fx.conf, fx.journal)
	require.NoError(t, wallet.Initialize(beneficiary, executor, sched))

	env := xenv.New(1, sched.Start, admin)
	_, err := fx.token.Mint(env, wallet.Address(), fx.conf.Encrypt(admin, funding))
	require.NoError(t, err)
	return wallet
}

func TestWalletRelease(t *testing.T) {
	fx := newFixture(t)
	sched, _ := NewSchedule(1000, 3600, 0)
	wallet := fx.newWallet(t, sched, 1000)

	// midpoint releases half
	env := xenv.New(2, 2800, beneficiary)
	effective, err := wallet.Release(env, fx.token)
	require.NoError(t, err)
	v, err := fx.conf.Decrypt(effective, beneficiary)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), v)
	assert.Equal(t, uint64(500), fx.balance(t, beneficiary))

	// same timestamp again: zero delta, no error
	effective, err = wallet.Release(env, fx.token)
	require.NoError(t, err)
	v, _ = fx.conf.Decrypt(effective, beneficiary)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, uint64(500), fx.balance(t, beneficiary))

	// past the end releases the remainder
	env = xenv.New(3, 4600, beneficiary)
	_, err = wallet.Release(env, fx.token)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), fx.balance(t, beneficiary))
	assert.Equal(t, uint64(0), fx.balance(t, wallet.Address()))

	assert.Len(t, fx.journal.Filter(events.NameVestingReleased), 3)
}

func TestWalletReleaseBeforeCliff(t *testing.T) {
	fx := newFixture(t)
	sched, _ := NewSchedule(1000, 3600, 2000)
	wallet := fx.newWallet(t, sched, 1000)

	env := xenv.New(2, 1500, beneficiary)
	effective, err := wallet.Release(env, fx.token)
	require.NoError(t, err)
	v, err := fx.conf.Decrypt(effective, beneficiary)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, uint64(0), fx.balance(t, beneficiary))
}

func TestWalletLateFunding(t *testing.T) {
	fx := newFixture(t)
	sched, _ := NewSchedule(1000, 1000, 0)
	wallet := fx.newWallet(t, sched, 600)

	// midpoint of the original funding
	env := xenv.New(2, 1500, beneficiary)
	_, err := wallet.Release(env, fx.token)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), fx.balance(t, beneficiary))

	// a top-up joins the same schedule
	adminEnv := xenv.New(3, 1500, admin)
	_, err = fx.token.Mint(adminEnv, wallet.Address(), fx.conf.Encrypt(admin, 400))
	require.NoError(t, err)

	env = xenv.New(4, 1500, beneficiary)
	_, err = wallet.Release(env, fx.token)
	require.NoError(t, err)
	// total vestable is now 1000, half of it vested
	assert.Equal(t, uint64(500), fx.balance(t, beneficiary))
}

func TestWalletInitializeOnce(t *testing.T) {
	fx := newFixture(t)
	sched, _ := NewSchedule(1000, 3600, 0)
	wallet := fx.newWallet(t, sched, 0)

	err := wallet.Initialize(beneficiary, executor, sched)
	assert.ErrorIs(t, err, reverts.ErrInvalidInitialization)
}

func TestWalletCallExecutorOnly(t *testing.T) {
	fx := newFixture(t)
	sched, _ := NewSchedule(1000, 3600, 0)
	wallet := fx.newWallet(t, sched, 0)

	env := xenv.New(1, 1000, beneficiary)
	err := wallet.Call(env, func(*xenv.Environment) error { return nil })
	assert.ErrorIs(t, err, reverts.ErrAccountUnauthorized)

	var asWallet veil.Address
	env = xenv.New(1, 1000, executor)
	err = wallet.Call(env, func(inner *xenv.Environment) error {
		asWallet = inner.Caller()
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, wallet.Address(), asWallet)
}

func TestFactoryDeterministicCreate(t *testing.T) {
	fx := newFixture(t)
	factory := NewFactory(veil.BytesToAddress([]byte("factory")), fx.st, fx.conf, fx.journal)
	sched, _ := NewSchedule(1000, 3600, 0)

	predicted := factory.PredictAddress(beneficiary, executor, sched)

	env := xenv.New(1, 1000, admin)
	wallet, err := factory.CreateWallet(env, beneficiary, executor, sched)
	require.NoError(t, err)
	assert.Equal(t, predicted, wallet.Address())

	exists, err := factory.Exists(predicted)
	require.NoError(t, err)
	assert.True(t, exists)

	// same arguments collide, first wallet is preserved
	_, err = factory.CreateWallet(env, beneficiary, executor, sched)
	assert.ErrorIs(t, err, reverts.ErrWalletAlreadyExists)

	got, err := factory.Wallet(predicted)
	require.NoError(t, err)
	b, err := got.Beneficiary()
	require.NoError(t, err)
	assert.Equal(t, beneficiary, b)

	// different salt, different address
	other, _ := NewSchedule(2000, 3600, 0)
	assert.NotEqual(t, predicted, factory.PredictAddress(beneficiary, executor, other))
}
