// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilfi/veil/lvldb"
	"github.com/veilfi/veil/veil"
)

func TestBalance(t *testing.T) {
	db, _ := lvldb.NewMem()
	st := New(db)

	addr := veil.BytesToAddress([]byte("a1"))

	balance, err := st.GetBalance(addr)
	assert.NoError(t, err)
	assert.Equal(t, new(big.Int), balance)

	st.SetBalance(addr, big.NewInt(100))
	balance, err = st.GetBalance(addr)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(100), balance)
}

func TestCheckpointRevert(t *testing.T) {
	db, _ := lvldb.NewMem()
	st := New(db)

	addr := veil.BytesToAddress([]byte("a1"))
	st.SetBalance(addr, big.NewInt(1))

	checkpoint := st.NewCheckpoint()
	st.SetBalance(addr, big.NewInt(2))

	balance, _ := st.GetBalance(addr)
	assert.Equal(t, big.NewInt(2), balance)

	st.RevertTo(checkpoint)
	balance, _ = st.GetBalance(addr)
	assert.Equal(t, big.NewInt(1), balance)
}

func TestFlushReload(t *testing.T) {
	db, _ := lvldb.NewMem()
	st := New(db)

	addr := veil.BytesToAddress([]byte("a1"))
	key := veil.BytesToBytes32([]byte("k1"))

	st.SetBalance(addr, big.NewInt(7))
	assert.NoError(t, st.SetStructuredStorage(addr, key, big.NewInt(42)))
	assert.NoError(t, st.Flush())

	// a fresh state over the same db sees the flushed values
	st2 := New(db)
	balance, err := st2.GetBalance(addr)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(7), balance)

	var v big.Int
	assert.NoError(t, st2.GetStructuredStorage(addr, key, &v))
	assert.Equal(t, big.NewInt(42), &v)
}

func TestStructuredStorage(t *testing.T) {
	db, _ := lvldb.NewMem()
	st := New(db)

	addr := veil.BytesToAddress([]byte("a1"))
	key := veil.BytesToBytes32([]byte("k1"))

	// empty storage leaves the zero value
	var v big.Int
	assert.NoError(t, st.GetStructuredStorage(addr, key, &v))
	assert.Equal(t, new(big.Int), &v)

	assert.NoError(t, st.SetStructuredStorage(addr, key, big.NewInt(5)))
	var got big.Int
	assert.NoError(t, st.GetStructuredStorage(addr, key, &got))
	assert.Equal(t, big.NewInt(5), &got)

	// zero value stored as empty
	assert.NoError(t, st.SetStructuredStorage(addr, key, new(big.Int)))
	raw, err := st.GetRawStorage(addr, key)
	assert.NoError(t, err)
	assert.Len(t, raw, 0)
}
