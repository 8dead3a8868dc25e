// Package state is the core API for the vaults and implements all the
// business rules for converting deposits into shares and back.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/vaults/foundation/events"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/auth"
	"github.com/ardanlabs/vaults/foundation/vault/curve"
	"github.com/ardanlabs/vaults/foundation/vault/event"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/ardanlabs/vaults/foundation/vault/outbox"
	"github.com/ardanlabs/vaults/foundation/vault/token"
	"github.com/google/uuid"
)

// Memo values understood and produced by the vaults.
const (
	BurnMemo   = "🔥"
	IssueMemo  = "issue"
	RetireMemo = "retire"
)

// Set of errors returned by the state.
var (
	ErrUnknownAsset                   = errors.New("incoming transfer asset symbol not supported")
	ErrContractMismatch               = errors.New("token contract does not match")
	ErrInsufficientSupplyForBootstrap = errors.New("deposit has no supply")
	ErrNonZeroInitialBalance          = errors.New("account already holds the deposit asset")
	ErrPrecisionMismatch              = errors.New("symbol precision mismatch")
	ErrInvalidQuantity                = errors.New("invalid quantity")
	ErrUnauthenticated                = auth.ErrUnauthenticated
	ErrDivisionByZeroState            = curve.ErrDivisionByZero
)

// IsFatal reports whether the error means the books broke an invariant. The
// vaults must stop processing when this happens.
func IsFatal(err error) bool {
	return curve.IsFatal(err)
}

// =============================================================================

// Kind represents what an event did to the books.
type Kind string

// Set of kinds a receipt can carry.
const (
	KindSetup   Kind = "setup"
	KindIssue   Kind = "issue"
	KindRedeem  Kind = "redeem"
	KindBurn    Kind = "burn"
	KindResync  Kind = "resync"
	KindIgnored Kind = "ignored"
)

// Receipt describes a committed unit of work.
type Receipt struct {
	BatchID      uuid.UUID            `json:"batch_id"`
	Kind         Kind                 `json:"kind"`
	Transfer     *event.Transfer      `json:"transfer,omitempty"`
	Amount       asset.Asset          `json:"amount"`
	Entry        ledger.Entry         `json:"entry"`
	Instructions []outbox.Instruction `json:"instructions"`
}

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of vault operations.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the vaults.
type Config struct {
	Self          asset.Name
	TokenContract asset.Name
	NativeSymbol  asset.ExtendedSymbol
	Ratio         int64
	Storage       ledger.Storage
	Tokens        token.Service
	Staking       token.Staking
	Dispatcher    outbox.Dispatcher
	Auth          auth.Authenticator
	Receipts      *events.Events[Receipt]
	EvHandler     EventHandler
	Now           func() time.Time
}

// State manages the vault books.
type State struct {
	self          asset.Name
	tokenContract asset.Name
	nativeSymbol  asset.ExtendedSymbol
	ratio         int64
	evHandler     EventHandler
	now           func() time.Time

	storage    ledger.Storage
	tokens     token.Service
	staking    token.Staking
	dispatcher outbox.Dispatcher
	auth       auth.Authenticator
	receipts   *events.Events[Receipt]
}

// New constructs the vault state for use.
func New(cfg Config) (*State, error) {
	if !cfg.Self.IsValid() {
		return nil, fmt.Errorf("invalid vault account %q", cfg.Self)
	}
	if !cfg.TokenContract.IsValid() {
		return nil, fmt.Errorf("invalid token contract %q", cfg.TokenContract)
	}
	if cfg.Storage == nil || cfg.Tokens == nil || cfg.Dispatcher == nil {
		return nil, errors.New("storage, tokens and dispatcher are required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ratio := cfg.Ratio
	if ratio <= 0 {
		ratio = curve.Ratio
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	authenticator := cfg.Auth
	if authenticator == nil {
		authenticator = auth.Trusted{}
	}

	state := State{
		self:          cfg.Self,
		tokenContract: cfg.TokenContract,
		nativeSymbol:  cfg.NativeSymbol,
		ratio:         ratio,
		evHandler:     ev,
		now:           now,

		storage:    cfg.Storage,
		tokens:     cfg.Tokens,
		staking:    cfg.Staking,
		dispatcher: cfg.Dispatcher,
		auth:       authenticator,
		receipts:   cfg.Receipts,
	}

	return &state, nil
}

// Self returns the account of the vaults.
func (s *State) Self() asset.Name {
	return s.self
}

// =============================================================================

// publish hands a committed receipt to the subscribers.
func (s *State) publish(rcpt Receipt) {
	if s.receipts != nil {
		s.receipts.Send(rcpt)
	}
}
