// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package veil

import "math/big"

// Constants of the ledger core.
const (
	BlockInterval uint64 = 10 // time interval between two consecutive blocks.

	InitialStreamID uint64 = 1 // vesting stream ids start at 1.
)

// Keys of governance params.
var (
	KeyRewardRate     = BytesToBytes32([]byte("reward-rate"))
	KeyCooldownPeriod = BytesToBytes32([]byte("unstake-cooldown-period"))

	// AccrualPrecision scales the reward-per-stake accumulator so that
	// integer division loses at most 1e-18 per unit of stake.
	AccrualPrecision = big.NewInt(1e18)
)
