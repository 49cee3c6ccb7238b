// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/accrual"
	"github.com/veilfi/veil/ledger/authority"
	"github.com/veilfi/veil/ledger/compliance"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/params"
	"github.com/veilfi/veil/ledger/rewards"
	"github.com/veilfi/veil/ledger/token"
	"github.com/veilfi/veil/ledger/vesting"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

// Scenario a replayable sequence of ledger operations.
type Scenario struct {
	Admin string `yaml:"admin"`
	Steps []Step `yaml:"steps"`
}

// Step one ledger operation at a synthetic block. Unused fields stay
// zero; which ones matter depends on op.
type Step struct {
	Block   uint64 `yaml:"block"`
	Time    uint64 `yaml:"time"`
	Op      string `yaml:"op"`
	Caller  string `yaml:"caller"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Account string `yaml:"account"`
	Amount  uint64 `yaml:"amount"`
	Role    string `yaml:"role"`
	Until   uint64 `yaml:"until"`
	Rate    uint64 `yaml:"rate"`
	Start   uint64 `yaml:"start"`
	Seconds uint64 `yaml:"seconds"`
	Cliff   uint64 `yaml:"cliff"`
	Stream  uint64 `yaml:"stream"`
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if scenario.Admin == "" {
		return nil, errors.New("scenario: admin account required")
	}
	return &scenario, nil
}

// resolveAddr maps a scenario account to an address: hex literals parse
// as-is, anything else is a symbolic name.
func resolveAddr(name string) (veil.Address, error) {
	if name == "" {
		return veil.Address{}, nil
	}
	if strings.HasPrefix(name, "0x") {
		addr, err := veil.ParseAddress(name)
		if err != nil {
			return veil.Address{}, err
		}
		return *addr, nil
	}
	return veil.BytesToAddress([]byte(name)), nil
}

var roleNames = map[string]veil.Bytes32{
	"admin":   authority.RoleAdmin,
	"agent":   authority.RoleAgent,
	"freezer": authority.RoleFreezer,
}

type runtime struct {
	conf     *conf.Engine
	auth     *authority.Authority
	token    *token.Token
	rewards  *rewards.Rewards
	registry *vesting.Registry
	factory  *accrual.Factory
}

func newRuntime(st *state.State, journal events.Emitter, scenario *Scenario) (*runtime, error) {
	ce := conf.NewEngine()
	auth := authority.New(veil.BytesToAddress([]byte("veil-authority")), st)
	prm := params.New(veil.BytesToAddress([]byte("veil-params")), st)
	gate := compliance.New(veil.BytesToAddress([]byte("veil-gate")), st, auth, ce, journal)
	tok := token.New(veil.BytesToAddress([]byte("veil-token")), st, auth, gate, ce, journal)
	rw := rewards.New(veil.BytesToAddress([]byte("veil-rewards")), st, auth, prm, ce, tok, journal)
	reg := vesting.New(veil.BytesToAddress([]byte("veil-vesting")), st, ce, tok, journal)
	factory := accrual.NewFactory(veil.BytesToAddress([]byte("veil-wallets")), st, ce, journal)

	admin, err := resolveAddr(scenario.Admin)
	if err != nil {
		return nil, err
	}
	if err := auth.Bootstrap(admin); err != nil {
		return nil, err
	}
	return &runtime{ce, auth, tok, rw, reg, factory}, nil
}

func (rt *runtime) run(scenario *Scenario) error {
	for i, step := range scenario.Steps {
		if err := rt.exec(&step); err != nil {
			return errors.WithMessagef(err, "step %d (%s)", i, step.Op)
		}
		logger.Info("step executed", "n", i, "op", step.Op, "block", step.Block)
	}
	return nil
}

func (rt *runtime) exec(step *Step) error {
	caller, err := resolveAddr(step.Caller)
	if err != nil {
		return err
	}
	from, err := resolveAddr(step.From)
	if err != nil {
		return err
	}
	to, err := resolveAddr(step.To)
	if err != nil {
		return err
	}
	account, err := resolveAddr(step.Account)
	if err != nil {
		return err
	}
	env := xenv.New(step.Block, step.Time, caller)
	amount := rt.conf.Encrypt(caller, step.Amount)

	switch step.Op {
	case "grant-role":
		role, ok := roleNames[step.Role]
		if !ok {
			return errors.Errorf("unknown role %q", step.Role)
		}
		return rt.auth.Grant(env, role, account)
	case "mint":
		_, err := rt.token.Mint(env, to, amount)
		return err
	case "burn":
		_, err := rt.token.Burn(env, from, amount)
		return err
	case "transfer":
		_, err := rt.token.Transfer(env, to, amount)
		return err
	case "transfer-from":
		_, err := rt.token.TransferFrom(env, from, to, amount)
		return err
	case "force-transfer":
		_, err := rt.token.ForceTransfer(env, from, to, amount)
		return err
	case "set-frozen":
		return rt.token.SetFrozen(env, account, amount)
	case "set-operator":
		return rt.token.SetOperator(env, account, step.Until)
	case "pause":
		return rt.token.Pause(env)
	case "unpause":
		return rt.token.Unpause(env)
	case "stake":
		return rt.rewards.Stake(env, step.Amount)
	case "unstake":
		return rt.rewards.Unstake(env, step.Amount)
	case "release":
		return rt.rewards.Release(env)
	case "claim-rewards":
		return rt.rewards.ClaimRewards(env)
	case "set-reward-rate":
		return rt.rewards.SetRewardRate(env, step.Rate)
	case "set-cooldown":
		return rt.rewards.SetCooldownPeriod(env, step.Seconds)
	case "add-operator":
		return rt.rewards.AddOperator(env, account)
	case "create-wallet":
		sched, err := accrual.NewSchedule(step.Start, step.Seconds, step.Cliff)
		if err != nil {
			return err
		}
		w, err := rt.factory.CreateWallet(env, to, account, sched)
		if err != nil {
			return err
		}
		logger.Info("wallet created", "addr", w.Address())
		return nil
	case "fund-wallet":
		sched, err := accrual.NewSchedule(step.Start, step.Seconds, step.Cliff)
		if err != nil {
			return err
		}
		_, err = rt.token.Mint(env, rt.factory.PredictAddress(to, account, sched), amount)
		return err
	case "release-wallet":
		sched, err := accrual.NewSchedule(step.Start, step.Seconds, step.Cliff)
		if err != nil {
			return err
		}
		w, err := rt.factory.Wallet(rt.factory.PredictAddress(to, account, sched))
		if err != nil {
			return err
		}
		_, err = w.Release(env, rt.token)
		return err
	case "create-stream":
		id, err := rt.registry.CreateStream(env, step.Start, to, step.Rate, amount)
		if err != nil {
			return err
		}
		logger.Info("stream created", "id", id)
		return nil
	case "claim":
		_, err := rt.registry.Claim(env, step.Stream)
		return err
	case "create-vault":
		vault, err := rt.registry.CreateManagedVault(env, step.Stream)
		if err != nil {
			return err
		}
		logger.Info("vault created", "addr", vault)
		return nil
	default:
		return errors.Errorf("unknown op %q", step.Op)
	}
}
