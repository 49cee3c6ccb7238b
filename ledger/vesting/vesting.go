// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vesting implements the per-recipient vesting stream registry.
//
// A stream accrues at a fixed rate per second from its start time, up
// to its total allocation. Claims pay the recipient directly, or a
// managed vault once the recipient creates one. Stream funds live in
// the registry's token custody from creation.
package vesting

import (
	"encoding/binary"
	"math"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/log"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

var logger = log.WithContext("pkg", "vesting")

// Token is the token capability the registry needs.
type Token interface {
	Transfer(env *xenv.Environment, to veil.Address, amount conf.Amount) (conf.Amount, error)
	TransferFrom(env *xenv.Environment, from, to veil.Address, amount conf.Amount) (conf.Amount, error)
	SetOperator(env *xenv.Environment, spender veil.Address, until uint64) error
}

// Stream a single vesting stream record.
type Stream struct {
	Recipient veil.Address
	Start     uint64
	Rate      uint64 // tokens per second
	Total     veil.Bytes32
	Claimed   veil.Bytes32
	Vault     veil.Address // zero until a managed vault is created
}

var nextIDKey = veil.BytesToBytes32([]byte("next-stream-id"))

func streamKey(id uint64) veil.Bytes32 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return veil.BytesToBytes32(crypto.Keccak256([]byte("stream"), buf[:]))
}

func vaultSalt(id uint64) veil.Bytes32 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return veil.BytesToBytes32(crypto.Keccak256([]byte("vault"), buf[:]))
}

// Registry the vesting stream registry engine.
type Registry struct {
	addr    veil.Address
	state   *state.State
	conf    *conf.Engine
	token   Token
	emitter events.Emitter
}

// New create a new instance.
func New(addr veil.Address, state *state.State, conf *conf.Engine, token Token, emitter events.Emitter) *Registry {
	return &Registry{addr, state, conf, token, emitter}
}

// Address returns the registry address.
func (r *Registry) Address() veil.Address { return r.addr }

func (r *Registry) nextID() (uint64, error) {
	var next uint64
	if err := r.state.GetStructuredStorage(r.addr, nextIDKey, &next); err != nil {
		return 0, err
	}
	if next == 0 {
		next = veil.InitialStreamID
	}
	return next, nil
}

// Stream returns the stream record for id.
func (r *Registry) Stream(id uint64) (*Stream, error) {
	next, err := r.nextID()
	if err != nil {
		return nil, err
	}
	if id < veil.InitialStreamID || id >= next {
		return nil, reverts.ErrUnknownStream
	}
	var s Stream
	if err := r.state.GetStructuredStorage(r.addr, streamKey(id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Registry) setStream(id uint64, s *Stream) error {
	return r.state.SetStructuredStorage(r.addr, streamKey(id), s)
}

// CreateStream pulls total into the registry's custody and opens a
// stream for recipient. Stream ids are a strictly increasing counter
// starting at 1. The caller must have approved the registry as token
// operator; a clamped pull opens the stream over what actually arrived.
func (r *Registry) CreateStream(env *xenv.Environment, start uint64, recipient veil.Address, rate uint64, total conf.Amount) (uint64, error) {
	var id uint64
	err := r.guarded(func() error {
		if recipient.IsZero() {
			return reverts.ErrInvalidReceiver
		}
		funded, err := r.token.TransferFrom(env.WithCaller(r.addr), env.Caller(), r.addr, total)
		if err != nil {
			return err
		}
		next, err := r.nextID()
		if err != nil {
			return err
		}
		id = next
		if err := r.state.SetStructuredStorage(r.addr, nextIDKey, next+1); err != nil {
			return err
		}
		r.conf.Allow(funded, recipient)
		if err := r.setStream(id, &Stream{
			Recipient: recipient,
			Start:     start,
			Rate:      rate,
			Total:     veil.Bytes32(funded),
		}); err != nil {
			return err
		}
		logger.Debug("stream created", "id", id, "recipient", recipient)
		return r.emit(env, events.NameStreamCreated, idTopic(id), events.AddressTopic(recipient))
	})
	return id, err
}

// accrued returns the handle of min(total, rate*elapsed).
func (r *Registry) accrued(s *Stream, now uint64) conf.Amount {
	if now <= s.Start {
		return r.conf.Zero()
	}
	elapsed := now - s.Start
	linear := s.Rate * elapsed
	if elapsed != 0 && s.Rate > math.MaxUint64/elapsed {
		linear = math.MaxUint64
	}
	return r.conf.Min(conf.Amount(s.Total), r.conf.Encrypt(r.addr, linear))
}

// Claim pays out the accrued-but-unclaimed remainder of the stream.
// Recipient only. Claims before the start time, or repeated claims at
// one timestamp, move zero and are not an error.
func (r *Registry) Claim(env *xenv.Environment, id uint64) (conf.Amount, error) {
	var effective conf.Amount
	err := r.guarded(func() error {
		s, err := r.Stream(id)
		if err != nil {
			return err
		}
		if env.Caller() != s.Recipient {
			return reverts.ErrOnlyRecipient
		}

		claimable := r.conf.Sub(r.accrued(s, env.BlockTime()), conf.Amount(s.Claimed))

		// a managed vault, once created, receives all claims
		payee := s.Recipient
		if !s.Vault.IsZero() {
			payee = s.Vault
		}
		effective, err = r.token.Transfer(env.WithCaller(r.addr), payee, claimable)
		if err != nil {
			return err
		}

		claimed := r.conf.Add(conf.Amount(s.Claimed), effective)
		r.conf.Allow(claimed, s.Recipient)
		r.conf.Allow(effective, s.Recipient)
		s.Claimed = veil.Bytes32(claimed)
		if err := r.setStream(id, s); err != nil {
			return err
		}
		return r.emit(env, events.NameStreamClaimed, idTopic(id), effective.Bytes32())
	})
	if err != nil {
		return conf.Amount{}, err
	}
	return effective, nil
}

// CreateManagedVault creates the stream's vault sub-account and grants
// the recipient a permanent operator right to sweep it. Recipient only,
// once per stream.
func (r *Registry) CreateManagedVault(env *xenv.Environment, id uint64) (veil.Address, error) {
	var vault veil.Address
	err := r.guarded(func() error {
		s, err := r.Stream(id)
		if err != nil {
			return err
		}
		if env.Caller() != s.Recipient {
			return reverts.ErrOnlyRecipient
		}
		if !s.Vault.IsZero() {
			return reverts.ErrManagedVaultAlreadyExists
		}

		vault = veil.CreateVaultAddress(r.addr, vaultSalt(id))
		s.Vault = vault
		if err := r.setStream(id, s); err != nil {
			return err
		}
		if err := r.token.SetOperator(env.WithCaller(vault), s.Recipient, math.MaxUint64); err != nil {
			return err
		}
		return r.emit(env, events.NameManagedVaultCreated, idTopic(id), events.AddressTopic(vault))
	})
	if err != nil {
		return veil.Address{}, err
	}
	return vault, nil
}

func (r *Registry) guarded(op func() error) error {
	chk := r.state.NewCheckpoint()
	if err := op(); err != nil {
		r.state.RevertTo(chk)
		return err
	}
	return nil
}

func (r *Registry) emit(env *xenv.Environment, name string, topics ...veil.Bytes32) error {
	return r.emitter.Emit(&events.Event{
		BlockNumber: env.BlockNumber(),
		BlockTime:   env.BlockTime(),
		Engine:      r.addr,
		Name:        name,
		Topics:      topics,
	})
}

func idTopic(id uint64) veil.Bytes32 {
	var t veil.Bytes32
	binary.BigEndian.PutUint64(t[24:], id)
	return t
}
