// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import "github.com/veilfi/veil/veil"

// Environment the execution environment of one ledger operation.
//
// Time never advances inside an operation. Block number and timestamp
// are external monotonic inputs supplied per call, so two calls with
// equal timestamps see identical time-dependent quantities.
type Environment struct {
	blockNumber uint64
	blockTime   uint64
	caller      veil.Address
}

// New create a environment for one operation.
func New(blockNumber, blockTime uint64, caller veil.Address) *Environment {
	return &Environment{
		blockNumber: blockNumber,
		blockTime:   blockTime,
		caller:      caller,
	}
}

// BlockNumber returns the current block number.
func (env *Environment) BlockNumber() uint64 { return env.blockNumber }

// BlockTime returns the current block timestamp, in unix seconds.
func (env *Environment) BlockTime() uint64 { return env.blockTime }

// Caller returns the account that invoked the operation.
func (env *Environment) Caller() veil.Address { return env.caller }

// WithCaller derives an environment at the same block acting as caller.
func (env *Environment) WithCaller(caller veil.Address) *Environment {
	return &Environment{
		blockNumber: env.blockNumber,
		blockTime:   env.blockTime,
		caller:      caller,
	}
}
