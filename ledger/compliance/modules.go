// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package compliance

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

// BalanceReader exposes token balances to policy modules.
type BalanceReader interface {
	BalanceOf(account veil.Address) (conf.Amount, error)
}

// BalanceCap denies transfers that would push the recipient's balance
// above a fixed cap. Zero-address recipients (burns) are always allowed.
type BalanceCap struct {
	addr     veil.Address
	conf     *conf.Engine
	balances BalanceReader
	cap      uint64
}

// NewBalanceCap create a balance cap module.
func NewBalanceCap(addr veil.Address, conf *conf.Engine, balances BalanceReader, cap uint64) *BalanceCap {
	return &BalanceCap{addr, conf, balances, cap}
}

// Address implements Module.
func (m *BalanceCap) Address() veil.Address { return m.addr }

// Name implements Module.
func (m *BalanceCap) Name() string { return "balance-cap" }

// IsCompliant implements Module.
func (m *BalanceCap) IsCompliant(_ *xenv.Environment, _, to veil.Address, amount conf.Amount) (bool, error) {
	if to.IsZero() {
		return true, nil
	}
	balance, err := m.balances.BalanceOf(to)
	if err != nil {
		return false, err
	}
	next := m.conf.Add(balance, amount)
	m.conf.Allow(next, m.addr)
	v, err := m.conf.Decrypt(next, m.addr)
	if err != nil {
		return false, err
	}
	return v <= m.cap, nil
}

// PreTransfer implements Module.
func (m *BalanceCap) PreTransfer(_ *xenv.Environment, _, _ veil.Address, _ conf.Amount) error {
	return nil
}

// PostTransfer implements Module.
func (m *BalanceCap) PostTransfer(_ *xenv.Environment, _, _ veil.Address, _ conf.Amount) error {
	return nil
}

// InvestorCount caps the number of distinct accounts that ever received
// tokens. An account counts from its first incoming transfer and is
// never uncounted, so the cap bounds the investor registry size rather
// than the live holder set.
type InvestorCount struct {
	addr  veil.Address
	state *state.State
	max   uint64
}

// NewInvestorCount create an investor count module.
func NewInvestorCount(addr veil.Address, state *state.State, max uint64) *InvestorCount {
	return &InvestorCount{addr, state, max}
}

var investorCountKey = veil.BytesToBytes32([]byte("investor-count"))

func seenKey(account veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256([]byte("investor-seen"), account.Bytes()))
}

// Address implements Module.
func (m *InvestorCount) Address() veil.Address { return m.addr }

// Name implements Module.
func (m *InvestorCount) Name() string { return "investor-count" }

func (m *InvestorCount) seen(account veil.Address) (bool, error) {
	var seen bool
	if err := m.state.GetStructuredStorage(m.addr, seenKey(account), &seen); err != nil {
		return false, err
	}
	return seen, nil
}

// Count returns the number of counted investors.
func (m *InvestorCount) Count() (uint64, error) {
	var count uint64
	if err := m.state.GetStructuredStorage(m.addr, investorCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// IsCompliant implements Module.
func (m *InvestorCount) IsCompliant(_ *xenv.Environment, _, to veil.Address, _ conf.Amount) (bool, error) {
	if to.IsZero() {
		return true, nil
	}
	seen, err := m.seen(to)
	if err != nil || seen {
		return seen, err
	}
	count, err := m.Count()
	if err != nil {
		return false, err
	}
	return count < m.max, nil
}

// PreTransfer implements Module.
func (m *InvestorCount) PreTransfer(_ *xenv.Environment, _, _ veil.Address, _ conf.Amount) error {
	return nil
}

// PostTransfer implements Module.
func (m *InvestorCount) PostTransfer(_ *xenv.Environment, _, to veil.Address, _ conf.Amount) error {
	if to.IsZero() {
		return nil
	}
	seen, err := m.seen(to)
	if err != nil || seen {
		return err
	}
	count, err := m.Count()
	if err != nil {
		return err
	}
	if err := m.state.SetStructuredStorage(m.addr, seenKey(to), true); err != nil {
		return err
	}
	return m.state.SetStructuredStorage(m.addr, investorCountKey, count+1)
}
