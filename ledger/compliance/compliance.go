// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package compliance implements the transfer hook chain.
//
// Modules are allow/deny predicates consulted before a transfer takes
// effect. A denial never reverts the transfer; it zeroes the effective
// amount and the operation completes with an amount-0 event.
package compliance

import (
	"github.com/veilfi/veil/conf"
	"github.com/veilfi/veil/ledger/authority"
	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/ledger/reverts"
	"github.com/veilfi/veil/state"
	"github.com/veilfi/veil/veil"
	"github.com/veilfi/veil/xenv"
)

// Class selects which transfers a module applies to.
type Class uint8

const (
	// ClassAlwaysOn modules see every transfer, forced ones included.
	ClassAlwaysOn Class = iota
	// ClassTransferOnly modules are skipped for forced transfers.
	ClassTransferOnly
)

func (c Class) String() string {
	switch c {
	case ClassAlwaysOn:
		return "always-on"
	case ClassTransferOnly:
		return "transfer-only"
	}
	return "unknown"
}

// Module is a pluggable transfer policy.
//
// IsCompliant decides allow/deny for the full amount. The hooks run
// around the balance mutation of a compliant transfer and may keep
// module-local state (holder counts etc.); they must not mutate
// balances themselves.
type Module interface {
	Address() veil.Address
	Name() string
	IsCompliant(env *xenv.Environment, from, to veil.Address, amount conf.Amount) (bool, error)
	PreTransfer(env *xenv.Environment, from, to veil.Address, amount conf.Amount) error
	PostTransfer(env *xenv.Environment, from, to veil.Address, amount conf.Amount) error
}

type moduleList []veil.Address

// Gate holds the per-class ordered module lists.
type Gate struct {
	addr     veil.Address
	state    *state.State
	auth     *authority.Authority
	conf     *conf.Engine
	emitter  events.Emitter
	registry map[veil.Address]Module
}

// New create a new instance.
func New(addr veil.Address, state *state.State, auth *authority.Authority, conf *conf.Engine, emitter events.Emitter) *Gate {
	return &Gate{
		addr:     addr,
		state:    state,
		auth:     auth,
		conf:     conf,
		emitter:  emitter,
		registry: make(map[veil.Address]Module),
	}
}

func classKey(c Class) veil.Bytes32 {
	var key veil.Bytes32
	copy(key[:], "modules")
	key[31] = byte(c)
	return key
}

// Register makes a module resolvable by the gate. Registration is a
// deployment concern; it does not install the module for any class.
func (g *Gate) Register(m Module) {
	g.registry[m.Address()] = m
}

func (g *Gate) installed(c Class) (moduleList, error) {
	var list moduleList
	if err := g.state.GetStructuredStorage(g.addr, classKey(c), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Modules returns the resolved modules installed for the class, in
// installation order.
func (g *Gate) Modules(c Class) ([]Module, error) {
	list, err := g.installed(c)
	if err != nil {
		return nil, err
	}
	mods := make([]Module, 0, len(list))
	for _, addr := range list {
		m, ok := g.registry[addr]
		if !ok {
			return nil, reverts.ErrNotComplianceModule
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// Install appends the module to the class list. Admin only.
func (g *Gate) Install(env *xenv.Environment, c Class, module veil.Address) error {
	isAdmin, err := g.auth.Has(authority.RoleAdmin, env.Caller())
	if err != nil {
		return err
	}
	if !isAdmin {
		return reverts.ErrUnauthorizedSender
	}
	if _, ok := g.registry[module]; !ok {
		return reverts.ErrNotComplianceModule
	}

	list, err := g.installed(c)
	if err != nil {
		return err
	}
	for _, addr := range list {
		if addr == module {
			return reverts.ErrAlreadyInstalledModule
		}
	}
	if err := g.state.SetStructuredStorage(g.addr, classKey(c), append(list, module)); err != nil {
		return err
	}
	return g.emit(env, events.NameModuleInstalled, events.AddressTopic(module), classTopic(c))
}

// Uninstall removes the module from the class list. Admin only.
// Uninstalling a pair that is not installed is a no-op.
func (g *Gate) Uninstall(env *xenv.Environment, c Class, module veil.Address) error {
	isAdmin, err := g.auth.Has(authority.RoleAdmin, env.Caller())
	if err != nil {
		return err
	}
	if !isAdmin {
		return reverts.ErrUnauthorizedSender
	}

	list, err := g.installed(c)
	if err != nil {
		return err
	}
	kept := list[:0]
	found := false
	for _, addr := range list {
		if addr == module {
			found = true
			continue
		}
		kept = append(kept, addr)
	}
	if !found {
		return nil
	}
	if err := g.state.SetStructuredStorage(g.addr, classKey(c), kept); err != nil {
		return err
	}
	return g.emit(env, events.NameModuleUninstalled, events.AddressTopic(module), classTopic(c))
}

func (g *Gate) classes(forced bool) []Class {
	if forced {
		return []Class{ClassAlwaysOn}
	}
	return []Class{ClassAlwaysOn, ClassTransferOnly}
}

// Check evaluates all modules of the relevant classes and reports
// whether the transfer may proceed at full amount. Modules are granted
// viewer access on the amount; they are the trusted policy points.
func (g *Gate) Check(env *xenv.Environment, from, to veil.Address, amount conf.Amount, forced bool) (bool, error) {
	for _, c := range g.classes(forced) {
		mods, err := g.Modules(c)
		if err != nil {
			return false, err
		}
		for _, m := range mods {
			g.conf.Allow(amount, m.Address())
			ok, err := m.IsCompliant(env, from, to, amount)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// RunPreHooks invokes PreTransfer on every module of the relevant
// classes. Call only for a transfer that passed Check.
func (g *Gate) RunPreHooks(env *xenv.Environment, from, to veil.Address, amount conf.Amount, forced bool) error {
	return g.runHooks(env, from, to, amount, forced, Module.PreTransfer)
}

// RunPostHooks invokes PostTransfer on every module of the relevant
// classes after the balance mutation.
func (g *Gate) RunPostHooks(env *xenv.Environment, from, to veil.Address, amount conf.Amount, forced bool) error {
	return g.runHooks(env, from, to, amount, forced, Module.PostTransfer)
}

func (g *Gate) runHooks(env *xenv.Environment, from, to veil.Address, amount conf.Amount, forced bool,
	hook func(Module, *xenv.Environment, veil.Address, veil.Address, conf.Amount) error) error {
	for _, c := range g.classes(forced) {
		mods, err := g.Modules(c)
		if err != nil {
			return err
		}
		for _, m := range mods {
			g.conf.Allow(amount, m.Address())
			if err := hook(m, env, from, to, amount); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Gate) emit(env *xenv.Environment, name string, topics ...veil.Bytes32) error {
	return g.emitter.Emit(&events.Event{
		BlockNumber: env.BlockNumber(),
		BlockTime:   env.BlockTime(),
		Engine:      g.addr,
		Name:        name,
		Topics:      topics,
	})
}

func classTopic(c Class) veil.Bytes32 {
	var t veil.Bytes32
	t[31] = byte(c)
	return t
}
