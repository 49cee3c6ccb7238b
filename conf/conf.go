// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package conf provides opaque confidential amounts.
//
// An Amount is a handle to a non-negative 64-bit value held by the
// engine. Ledger code computes on handles with add/sub/min/select style
// operations and never branches on the underlying value, so the same
// accounting algorithm serves both confidential and plain deployments.
// Revealing the value behind a handle requires a viewer that has been
// granted access.
package conf

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/veilfi/veil/veil"
)

// Amount is the opaque handle of a confidential uint64.
// The zero handle stands for a plain zero and is viewable by anyone.
type Amount veil.Bytes32

// Bool is the opaque handle of a confidential boolean.
type Bool veil.Bytes32

// IsZeroHandle returns whether a is the zero handle.
// Note this tells nothing about the hidden value; use Engine.IsZero for that.
func (a Amount) IsZeroHandle() bool {
	return a == Amount{}
}

// Bytes32 returns the handle as a veil.Bytes32.
func (a Amount) Bytes32() veil.Bytes32 {
	return veil.Bytes32(a)
}

// ErrUnauthorizedViewer is returned when decrypting with a viewer that
// has no access to the handle.
var ErrUnauthorizedViewer = errors.New("conf: unauthorized viewer")

// Engine creates, combines and reveals confidential amounts.
//
// Handles are append-only: operations mint new handles and never mutate
// existing ones, so discarding handle references (e.g. on a state
// revert) is always safe.
type Engine struct {
	mu      sync.Mutex
	seq     uint64
	values  map[veil.Bytes32]uint64
	viewers map[veil.Bytes32]map[veil.Address]bool
}

// NewEngine create an engine with an empty handle space.
func NewEngine() *Engine {
	return &Engine{
		values:  make(map[veil.Bytes32]uint64),
		viewers: make(map[veil.Bytes32]map[veil.Address]bool),
	}
}

// alloc mints a deterministic fresh handle.
func (e *Engine) alloc() veil.Bytes32 {
	e.seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], e.seq)
	return veil.BytesToBytes32(crypto.Keccak256([]byte("veil-conf"), buf[:]))
}

func (e *Engine) put(value uint64) Amount {
	handle := e.alloc()
	e.values[handle] = value
	return Amount(handle)
}

func (e *Engine) get(a Amount) uint64 {
	if a.IsZeroHandle() {
		return 0
	}
	return e.values[veil.Bytes32(a)]
}

// Encrypt wraps a plain value into a fresh handle viewable by owner.
func (e *Engine) Encrypt(owner veil.Address, value uint64) Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.put(value)
	e.allow(a, owner)
	return a
}

// Zero returns the zero handle.
func (e *Engine) Zero() Amount {
	return Amount{}
}

// Add returns a handle to a+b, saturating at the uint64 maximum.
func (e *Engine) Add(a, b Amount) Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	x, y := e.get(a), e.get(b)
	if x > math.MaxUint64-y {
		return e.put(math.MaxUint64)
	}
	return e.put(x + y)
}

// Sub returns a handle to a-b, floored at zero.
func (e *Engine) Sub(a, b Amount) Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	x, y := e.get(a), e.get(b)
	if y > x {
		return e.put(0)
	}
	return e.put(x - y)
}

// Min returns a handle to min(a, b).
func (e *Engine) Min(a, b Amount) Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	x, y := e.get(a), e.get(b)
	if x < y {
		return e.put(x)
	}
	return e.put(y)
}

// MulPlain returns a handle to a*k, saturating at the uint64 maximum.
func (e *Engine) MulPlain(a Amount, k uint64) Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	x := e.get(a)
	if k != 0 && x > math.MaxUint64/k {
		return e.put(math.MaxUint64)
	}
	return e.put(x * k)
}

// DivPlain returns a handle to a/k, truncating. k must not be zero.
func (e *Engine) DivPlain(a Amount, k uint64) Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.put(e.get(a) / k)
}

// Le returns a handle to the boolean a <= b.
func (e *Engine) Le(a, b Amount) Bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var v uint64
	if e.get(a) <= e.get(b) {
		v = 1
	}
	handle := e.alloc()
	e.values[handle] = v
	return Bool(handle)
}

// IsZero returns a handle to the boolean a == 0.
func (e *Engine) IsZero(a Amount) Bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var v uint64
	if e.get(Amount(a)) == 0 {
		v = 1
	}
	handle := e.alloc()
	e.values[handle] = v
	return Bool(handle)
}

// Select returns a handle to (cond ? a : b).
func (e *Engine) Select(cond Bool, a, b Amount) Amount {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.values[veil.Bytes32(cond)] != 0 {
		return e.put(e.get(a))
	}
	return e.put(e.get(b))
}

func (e *Engine) allow(a Amount, viewer veil.Address) {
	if a.IsZeroHandle() {
		return
	}
	handle := veil.Bytes32(a)
	if e.viewers[handle] == nil {
		e.viewers[handle] = make(map[veil.Address]bool)
	}
	e.viewers[handle][viewer] = true
}

// Allow grants viewer access to the value behind a.
func (e *Engine) Allow(a Amount, viewer veil.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allow(a, viewer)
}

// IsAllowed returns whether viewer can decrypt a.
func (e *Engine) IsAllowed(a Amount, viewer veil.Address) bool {
	if a.IsZeroHandle() {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewers[veil.Bytes32(a)][viewer]
}

// Decrypt reveals the value behind a to viewer.
// It fails with ErrUnauthorizedViewer unless viewer was allowed.
func (e *Engine) Decrypt(a Amount, viewer veil.Address) (uint64, error) {
	if a.IsZeroHandle() {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.viewers[veil.Bytes32(a)][viewer] {
		return 0, ErrUnauthorizedViewer
	}
	return e.values[veil.Bytes32(a)], nil
}
