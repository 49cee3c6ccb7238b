// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/veilfi/veil/cache"
	"github.com/veilfi/veil/kv"
	"github.com/veilfi/veil/stackedmap"
	"github.com/veilfi/veil/veil"
)

const (
	balanceKeyPrefix = "b"
	storageKeyPrefix = "s"

	rawCacheSize = 2048
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

type (
	balanceKey veil.Address

	storageKey struct {
		addr veil.Address
		key  veil.Bytes32
	}
)

// State manages the ledger world state on top of a kv store.
//
// All reads and writes go through a stacked map, so that any range of
// mutations can be reverted as a whole. A mutating operation is expected
// to take a checkpoint first and revert to it on failure.
type State struct {
	db    kv.GetPutter
	cache *cache.LRU // read-through cache of raw kv values
	sm    *stackedmap.StackedMap
}

// New create a state object backed by db.
func New(db kv.GetPutter) *State {
	rawCache, _ := cache.NewLRU(rawCacheSize)
	state := State{
		db:    db,
		cache: rawCache,
	}
	state.sm = stackedmap.New(func(key interface{}) (interface{}, bool, error) {
		return state.srcGetter(key)
	})

	// the bottom level holds committed-but-unflushed values
	state.sm.Push()
	return &state
}

func (s *State) rawGet(key []byte) ([]byte, error) {
	v, err := s.cache.GetOrLoad(string(key), func(_ interface{}) (interface{}, error) {
		raw, err := s.db.Get(key)
		if err != nil {
			if s.db.IsNotFound(err) {
				return []byte(nil), nil
			}
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// srcGetter implements stackedmap.MapGetter, loading values from the kv store.
func (s *State) srcGetter(key interface{}) (interface{}, bool, error) {
	switch k := key.(type) {
	case balanceKey:
		raw, err := s.rawGet(append([]byte(balanceKeyPrefix), k[:]...))
		if err != nil {
			return nil, false, err
		}
		balance := new(big.Int)
		if len(raw) > 0 {
			if err := rlp.DecodeBytes(raw, balance); err != nil {
				return nil, false, err
			}
		}
		return balance, true, nil
	case storageKey:
		raw, err := s.rawGet(composeStorageKey(k))
		if err != nil {
			return nil, false, err
		}
		return rlp.RawValue(raw), true, nil
	}
	panic(fmt.Errorf("unexpected key type %+v", key))
}

func composeStorageKey(k storageKey) []byte {
	buf := make([]byte, 0, len(storageKeyPrefix)+veil.AddressLength+32)
	buf = append(buf, storageKeyPrefix...)
	buf = append(buf, k.addr[:]...)
	return append(buf, k.key[:]...)
}

// GetBalance returns the native balance for the given address.
func (s *State) GetBalance(addr veil.Address) (*big.Int, error) {
	v, _, err := s.sm.Get(balanceKey(addr))
	if err != nil {
		return nil, &Error{err}
	}
	return v.(*big.Int), nil
}

// SetBalance set native balance for the given address.
func (s *State) SetBalance(addr veil.Address, balance *big.Int) {
	s.sm.Put(balanceKey(addr), balance)
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr veil.Address, key veil.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data.(rlp.RawValue), nil
}

// SetRawStorage set storage value in rlp raw.
func (s *State) SetRawStorage(addr veil.Address, key veil.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// EncodeStorage set storage value encoded by given enc method.
func (s *State) EncodeStorage(addr veil.Address, key veil.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
func (s *State) DecodeStorage(addr veil.Address, key veil.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return &Error{err}
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Flush writes all accumulated changes through to the kv store.
func (s *State) Flush() error {
	batch := s.db.NewBatch()

	var err error
	s.sm.Journal(func(k, v interface{}) bool {
		switch key := k.(type) {
		case balanceKey:
			var raw []byte
			balance := v.(*big.Int)
			if balance.Sign() != 0 {
				if raw, err = rlp.EncodeToBytes(balance); err != nil {
					return false
				}
			}
			err = s.putOrDelete(batch, append([]byte(balanceKeyPrefix), key[:]...), raw)
		case storageKey:
			err = s.putOrDelete(batch, composeStorageKey(key), v.(rlp.RawValue))
		}
		return err == nil
	})
	if err != nil {
		return &Error{err}
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}

	// squash all levels; later reads load flushed values from db
	s.sm.PopTo(0)
	s.sm.Push()
	return nil
}

func (s *State) putOrDelete(batch kv.Batch, key, raw []byte) error {
	s.cache.Add(string(key), raw)
	if len(raw) == 0 {
		return batch.Delete(key)
	}
	return batch.Put(key, raw)
}
