// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package authority implements the role registry gating privileged
// ledger operations.
package authority

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

// Roles understood by the ledger engines.
var (
	RoleAdmin   = veil.BytesToBytes32([]byte("role-admin"))
	RoleAgent   = veil.BytesToBytes32([]byte("role-agent"))
	RoleFreezer = veil.BytesToBytes32([]byte("role-freezer"))
)

func roleKey(role veil.Bytes32, addr veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(crypto.Keccak256(role.Bytes(), addr.Bytes()))
}

// Authority is the role registry.
type Authority struct {
	addr  veil.Address
	state *state.State
}

// New create a new instance.
func New(addr veil.Address, state *state.State) *Authority {
	return &Authority{addr, state}
}

// Has returns whether account holds the role.
func (a *Authority) Has(role veil.Bytes32, account veil.Address) (bool, error) {
	var held bool
	if err := a.state.GetStructuredStorage(a.addr, roleKey(role, account), &held); err != nil {
		return false, err
	}
	return held, nil
}

// IsManager returns whether account is admin or agent.
func (a *Authority) IsManager(account veil.Address) (bool, error) {
	isAdmin, err := a.Has(RoleAdmin, account)
	if err != nil || isAdmin {
		return isAdmin, err
	}
	return a.Has(RoleAgent, account)
}

// Bootstrap grants the admin role unconditionally.
// Meant for genesis setup only; later grants go through Grant.
func (a *Authority) Bootstrap(admin veil.Address) error {
	return a.state.SetStructuredStorage(a.addr, roleKey(RoleAdmin, admin), true)
}

// Grant gives account the role. Only an admin may grant.
func (a *Authority) Grant(env *xenv.Environment, role veil.Bytes32, account veil.Address) error {
	isAdmin, err := a.Has(RoleAdmin, env.Caller())
	if err != nil {
		return err
	}
	if !isAdmin {
		return reverts.ErrUnauthorizedSender
	}
	return a.state.SetStructuredStorage(a.addr, roleKey(role, account), true)
}

// Revoke removes the role from account. Only an admin may revoke.
func (a *Authority) Revoke(env *xenv.Environment, role veil.Bytes32, account veil.Address) error {
	isAdmin, err := a.Has(RoleAdmin, env.Caller())
	if err != nil {
		return err
	}
	if !isAdmin {
		return reverts.ErrUnauthorizedSender
	}
	return a.state.SetStructuredStorage(a.addr, roleKey(role, account), false)
}
