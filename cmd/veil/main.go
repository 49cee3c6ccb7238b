// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/veilfi/veil/eventdb"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/log"
	"github.com/veilfi/veil/lvldb"
	"github.com/veilfi/veil/metrics"
	"github.com/veilfi/veil/state"
)

var (
	version   = "0.1.0"
	gitCommit string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%.8s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Veil",
		Usage:     "confidential accrual ledger",
		Copyright: "2026 The Veil developers",
		Flags: []cli.Flag{
			dataDirFlag,
			scenarioFlag,
			verbosityFlag,
			enableMetricsFlag,
			metricsAddrFlag,
		},
		Action: runAction,
		Commands: []cli.Command{
			{
				Name:  "inspect",
				Usage: "dump the recorded event journal",
				Flags: []cli.Flag{
					dataDirFlag,
					eventNameFlag,
				},
				Action: inspectAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(ctx *cli.Context) {
	log.SetRootLevel(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
}

func startMetrics(ctx *cli.Context) {
	if !ctx.Bool(enableMetricsFlag.Name) {
		return
	}
	metrics.InitializePrometheusMetrics()
	addr := ctx.String(metricsAddrFlag.Name)
	go func() {
		logger.Info("metrics service started", "addr", addr)
		if err := http.ListenAndServe(addr, metrics.HTTPHandler()); err != nil {
			logger.Warn("metrics service stopped", "err", err)
		}
	}()
}

// openJournal picks the event journal backing for the data dir.
func openJournal(dataDir string) (events.Emitter, func(), error) {
	if dataDir == "" {
		db, err := eventdb.NewMem()
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}
	db, err := eventdb.New(filepath.Join(dataDir, "events.db"))
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func openMainDB(dataDir string) (*lvldb.LevelDB, error) {
	if dataDir == "" {
		return lvldb.NewMem()
	}
	return lvldb.New(filepath.Join(dataDir, "main.db"), lvldb.Options{})
}

func runAction(ctx *cli.Context) error {
	initLogger(ctx)
	startMetrics(ctx)

	scenarioPath := ctx.String(scenarioFlag.Name)
	if scenarioPath == "" {
		return errors.New("no scenario given, see --scenario")
	}
	scenario, err := loadScenario(scenarioPath)
	if err != nil {
		return errors.WithMessage(err, "load scenario")
	}

	dataDir := ctx.String(dataDirFlag.Name)
	mainDB, err := openMainDB(dataDir)
	if err != nil {
		return errors.WithMessage(err, "open main database")
	}
	defer mainDB.Close()

	journal, closeJournal, err := openJournal(dataDir)
	if err != nil {
		return errors.WithMessage(err, "open event journal")
	}
	defer closeJournal()

	st := state.New(mainDB)
	rt, err := newRuntime(st, journal, scenario)
	if err != nil {
		return err
	}
	if err := rt.run(scenario); err != nil {
		return err
	}
	if err := st.Flush(); err != nil {
		return errors.WithMessage(err, "flush state")
	}
	logger.Info("scenario finished", "steps", len(scenario.Steps))
	return nil
}
