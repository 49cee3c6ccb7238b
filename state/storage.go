// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/veilfi/veil/veil"
)

// StorageEncoder implement it to customize encoding process for storage data.
type StorageEncoder interface {
	Encode() ([]byte, error)
}

// StorageDecoder implement it to customize decoding process for storage data.
type StorageDecoder interface {
	Decode([]byte) error
}

// GetStructuredStorage get and decode storage value for given address and key.
// If val implements StorageDecoder, it's used to decode, otherwise rlp is used.
// Empty storage leaves val untouched, so callers should pass zero values.
func (s *State) GetStructuredStorage(addr veil.Address, key veil.Bytes32, val interface{}) error {
	return s.DecodeStorage(addr, key, func(raw []byte) error {
		if dec, ok := val.(StorageDecoder); ok {
			return dec.Decode(raw)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, val)
	})
}

// SetStructuredStorage encode val and set storage value for given address and key.
// If val implements StorageEncoder, it's used to encode, otherwise rlp is used.
// Zero big.Int values are stored as empty, which deletes the entry on flush.
func (s *State) SetStructuredStorage(addr veil.Address, key veil.Bytes32, val interface{}) error {
	return s.EncodeStorage(addr, key, func() ([]byte, error) {
		if enc, ok := val.(StorageEncoder); ok {
			return enc.Encode()
		}
		if v, ok := val.(*big.Int); ok && v.Sign() == 0 {
			return nil, nil
		}
		return rlp.EncodeToBytes(val)
	})
}
