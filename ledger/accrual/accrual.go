// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accrual implements time-based linear release schedules and
// the vesting wallets built on them.
package accrual

import (
	"math/big"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/reverts"
)

// Schedule a linear release schedule. Cliff is an absolute timestamp;
// zero means no cliff. Timestamps are unix seconds.
type Schedule struct {
	Start    uint64
	Duration uint64
	Cliff    uint64
}

// NewSchedule create a validated schedule. A non-zero cliff must fall
// within [start, start+duration].
func NewSchedule(start, duration, cliff uint64) (*Schedule, error) {
	if cliff != 0 && (cliff < start || cliff-start > duration) {
		return nil, reverts.ErrInvalidCliffDuration
	}
	return &Schedule{Start: start, Duration: duration, Cliff: cliff}, nil
}

// ReleasedAmount returns how much of total has been released by now.
//
// Zero before the cliff (or start), the full total from start+duration
// on, linear in between with truncating division. Truncation makes
// repeated calls non-decreasing and bounded by total.
func (s *Schedule) ReleasedAmount(total, now uint64) uint64 {
	if now < s.Start || now < s.Cliff {
		return 0
	}
	if now >= s.Start+s.Duration {
		return total
	}
	v := new(big.Int).SetUint64(total)
	v.Mul(v, new(big.Int).SetUint64(now-s.Start))
	v.Div(v, new(big.Int).SetUint64(s.Duration))
	return v.Uint64()
}

// VestedAmount is ReleasedAmount over an opaque total. Time is public,
// so the schedule branches are plain; only the amount stays opaque.
func (s *Schedule) VestedAmount(e *conf.Engine, total conf.Amount, now uint64) conf.Amount {
	if now < s.Start || now < s.Cliff {
		return e.Zero()
	}
	if now >= s.Start+s.Duration {
		return total
	}
	return e.DivPlain(e.MulPlain(total, now-s.Start), s.Duration)
}
