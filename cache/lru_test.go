// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOrLoad(t *testing.T) {
	c, err := NewLRU(16)
	assert.NoError(t, err)

	loads := 0
	loader := func(key interface{}) (interface{}, error) {
		loads++
		return key.(int) * 2, nil
	}

	v, err := c.GetOrLoad(21, loader)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	// second get hits the cache
	v, _ = c.GetOrLoad(21, loader)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, loads)

	_, err = c.GetOrLoad(1, func(interface{}) (interface{}, error) {
		return nil, errors.New("load failed")
	})
	assert.Error(t, err)
}
