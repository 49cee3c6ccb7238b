// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/veilfi/veil/eventdb"
)

func inspectAction(ctx *cli.Context) error {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return errors.New("no data dir given, see --data-dir")
	}
	db, err := eventdb.New(filepath.Join(dataDir, "events.db"))
	if err != nil {
		return errors.WithMessage(err, "open event journal")
	}
	defer db.Close()

	var filter *eventdb.Filter
	if name := ctx.String(eventNameFlag.Name); name != "" {
		filter = &eventdb.Filter{Name: name}
	}
	evs, err := db.Filter(context.Background(), filter)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		fmt.Printf("#%-6d t=%-10d %-20s %s", ev.BlockNumber, ev.BlockTime, ev.Name, ev.Engine)
		for _, topic := range ev.Topics {
			fmt.Printf(" %s", topic.AbbrevString())
		}
		fmt.Println()
	}
	fmt.Printf("%d events\n", len(evs))
	return nil
}
