// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts defines the rejection errors shared by ledger engines.
//
// A revert rejects the whole operation atomically: no state written
// before the failure survives the caller's checkpoint rollback. Clamping
// a transfer to zero is NOT a revert; it is a successful operation that
// moved no value.
package reverts

import "errors"

// ErrRevert is an error that rejects a ledger operation.
type ErrRevert struct {
	message string
}

// New create a revert error with the given message.
func New(message string) *ErrRevert {
	return &ErrRevert{message: message}
}

func (e *ErrRevert) Error() string {
	return e.message
}

// IsRevertErr checks whether err wraps an ErrRevert.
func IsRevertErr(err error) bool {
	if err == nil {
		return false
	}
	var ve *ErrRevert
	return errors.As(err, &ve)
}

// Authorization failures.
var (
	ErrUnauthorizedSender  = New("unauthorized sender")
	ErrOnlyRecipient       = New("only stream recipient")
	ErrAccountUnauthorized = New("account unauthorized")
)

// Invalid-configuration failures.
var (
	ErrInvalidCliffDuration  = New("cliff duration exceeds vesting duration")
	ErrInvalidInitialization = New("already initialized")
)

// Resource-conflict failures.
var (
	ErrAlreadyInstalledModule    = New("module already installed")
	ErrManagedVaultAlreadyExists = New("managed vault already exists")
	ErrWalletAlreadyExists       = New("wallet already exists")
)

// Structural precondition failures.
var (
	ErrInvalidReceiver     = New("invalid receiver")
	ErrInvalidSender       = New("invalid sender")
	ErrZeroBalance         = New("zero balance")
	ErrUnauthorizedSpender = New("unauthorized spender")
	ErrNotComplianceModule = New("not a transfer compliance module")
	ErrUnknownStream       = New("unknown stream")
	ErrInsufficientStake   = New("insufficient staked amount")
	ErrInsufficientBalance = New("insufficient balance")
)

// Pause failures.
var ErrEnforcedPause = New("paused")
