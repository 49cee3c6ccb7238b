// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package conf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilfi/veil/veil"
)

func TestArithmetic(t *testing.T) {
	e := NewEngine()
	owner := veil.BytesToAddress([]byte("owner"))

	a := e.Encrypt(owner, 100)
	b := e.Encrypt(owner, 30)

	tests := []struct {
		name     string
		result   Amount
		expected uint64
	}{
		{"add", e.Add(a, b), 130},
		{"sub", e.Sub(a, b), 70},
		{"sub floors at zero", e.Sub(b, a), 0},
		{"min", e.Min(a, b), 30},
		{"mul plain", e.MulPlain(b, 4), 120},
		{"div plain", e.DivPlain(a, 3), 33},
		{"add saturates", e.Add(e.Encrypt(owner, math.MaxUint64), a), math.MaxUint64},
	}

	for _, tt := range tests {
		e.Allow(tt.result, owner)
		got, err := e.Decrypt(tt.result, owner)
		assert.NoError(t, err, tt.name)
		assert.Equal(t, tt.expected, got, tt.name)
	}
}

func TestSelect(t *testing.T) {
	e := NewEngine()
	owner := veil.BytesToAddress([]byte("owner"))

	amount := e.Encrypt(owner, 25)
	available := e.Encrypt(owner, 50)

	// the clamp pattern: transferred = (amount <= available) ? amount : 0
	transferred := e.Select(e.Le(amount, available), amount, e.Zero())
	e.Allow(transferred, owner)
	got, err := e.Decrypt(transferred, owner)
	assert.NoError(t, err)
	assert.Equal(t, uint64(25), got)

	transferred = e.Select(e.Le(available, amount), available, e.Zero())
	e.Allow(transferred, owner)
	got, err = e.Decrypt(transferred, owner)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestViewerACL(t *testing.T) {
	e := NewEngine()
	owner := veil.BytesToAddress([]byte("owner"))
	other := veil.BytesToAddress([]byte("other"))

	a := e.Encrypt(owner, 7)

	got, err := e.Decrypt(a, owner)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), got)

	_, err = e.Decrypt(a, other)
	assert.ErrorIs(t, err, ErrUnauthorizedViewer)

	e.Allow(a, other)
	got, err = e.Decrypt(a, other)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), got)

	// derived handles have no viewers until allowed
	sum := e.Add(a, a)
	_, err = e.Decrypt(sum, owner)
	assert.ErrorIs(t, err, ErrUnauthorizedViewer)
}

func TestZeroHandle(t *testing.T) {
	e := NewEngine()
	anyone := veil.BytesToAddress([]byte("anyone"))

	// the zero handle decrypts to 0 for anyone
	got, err := e.Decrypt(e.Zero(), anyone)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), got)
	assert.True(t, e.IsAllowed(e.Zero(), anyone))
}
