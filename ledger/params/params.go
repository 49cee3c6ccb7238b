// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package params implements the governance parameter store.
package params

import (
	"math/big"

	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
)

// Params key/value store of governance parameters.
type Params struct {
	addr  veil.Address
	state *state.State
}

// New create a new instance.
func New(addr veil.Address, state *state.State) *Params {
	return &Params{addr, state}
}

// Get native way to get param.
func (p *Params) Get(key veil.Bytes32) (*big.Int, error) {
	var v big.Int
	if err := p.state.GetStructuredStorage(p.addr, key, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Set native way to set param.
func (p *Params) Set(key veil.Bytes32, value *big.Int) error {
	return p.state.SetStructuredStorage(p.addr, key, value)
}
