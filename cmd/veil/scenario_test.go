// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/lvldb"
	"github.com/veilfi/veil/state"
)

const demoScenario = `
admin: alice
steps:
  - {block: 1, time: 10, op: mint, caller: alice, to: bob, amount: 1000}
  - {block: 1, time: 10, op: grant-role, caller: alice, role: freezer, account: alice}
  - {block: 2, time: 20, op: set-frozen, caller: alice, account: bob, amount: 400}
  - {block: 3, time: 30, op: transfer, caller: bob, to: carol, amount: 500}
  - {block: 3, time: 30, op: set-operator, caller: bob, account: veil-rewards, until: 1000}
  - {block: 4, time: 40, op: set-reward-rate, caller: alice, rate: 10}
  - {block: 4, time: 40, op: add-operator, caller: alice, account: bob}
  - {block: 4, time: 40, op: stake, caller: bob, amount: 100}
  - {block: 9, time: 90, op: unstake, caller: bob, amount: 100}
  - {block: 10, time: 100, op: set-operator, caller: alice, account: veil-vesting, until: 1000}
  - {block: 10, time: 100, op: mint, caller: alice, to: alice, amount: 500}
  - {block: 11, time: 110, op: create-stream, caller: alice, to: carol, start: 110, rate: 5, amount: 500}
  - {block: 12, time: 120, op: claim, caller: carol, stream: 1}
  - {block: 13, time: 130, op: create-wallet, caller: alice, to: dave, account: alice, start: 130, seconds: 100}
  - {block: 13, time: 130, op: fund-wallet, caller: alice, to: dave, account: alice, start: 130, seconds: 100, amount: 400}
  - {block: 14, time: 180, op: release-wallet, caller: dave, to: dave, account: alice, start: 130, seconds: 100}
`

func writeScenario(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadScenario(t *testing.T) {
	scenario, err := loadScenario(writeScenario(t, demoScenario))
	require.NoError(t, err)
	assert.Equal(t, "alice", scenario.Admin)
	assert.Len(t, scenario.Steps, 16)
	assert.Equal(t, "mint", scenario.Steps[0].Op)

	_, err = loadScenario(writeScenario(t, "steps: []"))
	assert.Error(t, err) // admin required
}

func TestRunScenario(t *testing.T) {
	scenario, err := loadScenario(writeScenario(t, demoScenario))
	require.NoError(t, err)

	db, _ := lvldb.NewMem()
	st := state.New(db)
	journal := &events.MemJournal{}

	rt, err := newRuntime(st, journal, scenario)
	require.NoError(t, err)
	require.NoError(t, rt.run(scenario))

	// transfer, mint x2, stream pull and claim all emit transfers
	assert.NotEmpty(t, journal.Filter(events.NameTransfer))
	assert.Len(t, journal.Filter(events.NameTokensStaked), 1)
	assert.Len(t, journal.Filter(events.NameStreamCreated), 1)
	assert.Len(t, journal.Filter(events.NameStreamClaimed), 1)
	assert.Len(t, journal.Filter(events.NameWalletCreated), 1)
	assert.Len(t, journal.Filter(events.NameVestingReleased), 1)
}

func TestScenarioUnknownOp(t *testing.T) {
	scenario, err := loadScenario(writeScenario(t, "admin: alice\nsteps:\n  - {op: teleport}\n"))
	require.NoError(t, err)

	db, _ := lvldb.NewMem()
	rt, err := newRuntime(state.New(db), &events.MemJournal{}, scenario)
	require.NoError(t, err)
	assert.Error(t, rt.run(scenario))
}
