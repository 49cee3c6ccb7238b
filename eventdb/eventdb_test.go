// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/veil"
)

func newTestDB(t *testing.T) *EventDB {
	db, err := NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmitAndFilter(t *testing.T) {
	db := newTestDB(t)

	tokenAddr := veil.BytesToAddress([]byte("token"))
	rewardsAddr := veil.BytesToAddress([]byte("rewards"))
	alice := veil.BytesToBytes32([]byte("alice"))

	require.NoError(t, db.Emit(&events.Event{
		BlockNumber: 1, BlockTime: 10, Engine: tokenAddr,
		Name:   events.NameTransfer,
		Topics: []veil.Bytes32{alice},
	}))
	require.NoError(t, db.Emit(&events.Event{
		BlockNumber: 2, BlockTime: 20, Engine: rewardsAddr,
		Name: events.NameTokensStaked,
	}))
	require.NoError(t, db.Emit(&events.Event{
		BlockNumber: 3, BlockTime: 30, Engine: tokenAddr,
		Name: events.NameTransfer,
	}))

	all, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, events.NameTransfer, all[0].Name)
	assert.Equal(t, []veil.Bytes32{alice}, all[0].Topics)
	assert.Empty(t, all[1].Topics)

	byName, err := db.Filter(context.Background(), &Filter{Name: events.NameTransfer})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	byEngine, err := db.Filter(context.Background(), &Filter{Engine: &rewardsAddr})
	require.NoError(t, err)
	assert.Len(t, byEngine, 1)
	assert.Equal(t, uint64(2), byEngine[0].BlockNumber)
}

func TestFilterRangeAndOrder(t *testing.T) {
	db := newTestDB(t)
	engine := veil.BytesToAddress([]byte("engine"))

	for n := uint64(1); n <= 5; n++ {
		require.NoError(t, db.Emit(&events.Event{
			BlockNumber: n, BlockTime: n * 10, Engine: engine,
			Name: events.NameTransfer,
		}))
	}

	got, err := db.Filter(context.Background(), &Filter{Range: &Range{From: 2, To: 4}})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[0].BlockNumber)
	assert.Equal(t, uint64(4), got[2].BlockNumber)

	got, err = db.Filter(context.Background(), &Filter{Order: DESC, Opts: &Options{Offset: 0, Limit: 2}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(5), got[0].BlockNumber)
	assert.Equal(t, uint64(4), got[1].BlockNumber)
}

func TestTooManyTopics(t *testing.T) {
	db := newTestDB(t)
	err := db.Emit(&events.Event{
		Name:   events.NameTransfer,
		Topics: make([]veil.Bytes32, maxTopics+1),
	})
	assert.Error(t, err)
}
