// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package events defines the output side channel of the ledger engines.
//
// Events report what an operation did, including the deliberate
// "attempted but ineffective" case: a clamped transfer emits its event
// with a zero amount handle rather than failing.
package events

import "github.com/veilfi/veil/veil"

// Standard event names emitted by the engines.
const (
	NameTransfer            = "Transfer"
	NameTokensFrozen        = "TokensFrozen"
	NameTokensStaked        = "TokensStaked"
	NameTokensUnstaked      = "TokensUnstaked"
	NameRewardsClaimed      = "RewardsClaimed"
	NameUnstakeReleased     = "UnstakeReleased"
	NameVestingReleased     = "VestingReleased"
	NameWalletCreated       = "VestingWalletCreated"
	NameStreamCreated       = "StreamCreated"
	NameStreamClaimed       = "StreamClaimed"
	NameManagedVaultCreated = "ManagedVaultCreated"
	NameModuleInstalled     = "ModuleInstalled"
	NameModuleUninstalled   = "ModuleUninstalled"
	NamePaused              = "Paused"
	NameUnpaused            = "Unpaused"
)

// Event a single ledger event.
type Event struct {
	BlockNumber uint64
	BlockTime   uint64
	Engine      veil.Address // the emitting engine
	Name        string
	Topics      []veil.Bytes32
}

// Emitter accepts events from the engines.
type Emitter interface {
	Emit(ev *Event) error
}

// AddressTopic pads an address into a topic.
func AddressTopic(addr veil.Address) veil.Bytes32 {
	return veil.BytesToBytes32(addr.Bytes())
}

// MemJournal an in-memory emitter, for tests and dry runs.
type MemJournal struct {
	Events []*Event
}

// Emit implements Emitter.
func (j *MemJournal) Emit(ev *Event) error {
	j.Events = append(j.Events, ev)
	return nil
}

// Filter returns recorded events with the given name.
func (j *MemJournal) Filter(name string) []*Event {
	var out []*Event
	for _, ev := range j.Events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
