// Package sheet maintains token supplies, account balances and staking
// positions in memory. It serves as the local token transfer service.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/outbox"
	"github.com/ardanlabs/vaults/foundation/vault/token"
)

// Set of errors returned by the sheet.
var (
	ErrTokenExists         = errors.New("token already exists")
	ErrInsufficientBalance = errors.New("overdrawn balance")
	ErrExceedsMaxSupply    = errors.New("quantity exceeds available supply")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrNotIssuer           = errors.New("tokens can only be issued or retired by the issuer")
	ErrSelfTransfer        = errors.New("cannot transfer to self")
)

// Token represents the state of one token on a contract.
type Token struct {
	Contract  asset.Name           `json:"contract"`
	Supply    asset.Asset          `json:"supply"`
	MaxSupply asset.Asset          `json:"max_supply"`
	Issuer    asset.Name           `json:"issuer"`
	Balances  map[asset.Name]int64 `json:"balances"`
}

// Stake represents what an account has locked in the staking system.
type Stake struct {
	VoterStaked   int64 `json:"voter_staked"`
	PendingRefund int64 `json:"pending_refund"`
	RexFund       int64 `json:"rex_fund"`
}

type tokenKey struct {
	contract asset.Name
	code     asset.SymbolCode
}

// Sheet represents the data representation to maintain token state.
type Sheet struct {
	mu     sync.RWMutex
	unit   sync.Mutex
	tokens map[tokenKey]Token
	stakes map[asset.Name]Stake
}

// New constructs a new sheet for use, optionally loaded with tokens and
// stakes usually read from a file.
func New(tokens []Token, stakes map[asset.Name]Stake) *Sheet {
	s := Sheet{
		tokens: make(map[tokenKey]Token),
		stakes: make(map[asset.Name]Stake),
	}

	for _, tkn := range tokens {
		s.tokens[keyOf(tkn.Contract, tkn.Supply.Symbol.Code)] = cloneToken(tkn)
	}
	for account, stake := range stakes {
		s.stakes[account] = stake
	}

	return &s
}

// Clone makes a copy of the current sheet.
func (s *Sheet) Clone() *Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cloneLocked()
}

// Replace updates the sheet with the state of another sheet.
func (s *Sheet) Replace(other *Sheet) {
	other.mu.RLock()
	tokens, stakes := other.tokens, other.stakes
	other.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = tokens
	s.stakes = stakes
}

// Tokens returns a copy of every token on the sheet.
func (s *Sheet) Tokens() []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]Token, 0, len(s.tokens))
	for _, tkn := range s.tokens {
		tokens = append(tokens, cloneToken(tkn))
	}

	return tokens
}

// Stakes returns a copy of every staking position.
func (s *Sheet) Stakes() map[asset.Name]Stake {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stakes := make(map[asset.Name]Stake, len(s.stakes))
	for account, stake := range s.stakes {
		stakes[account] = stake
	}

	return stakes
}

// Atomic runs fn as a unit against the sheet. When fn fails every change it
// made to the sheet is discarded. Units are serialized.
func (s *Sheet) Atomic(fn func() error) error {
	s.unit.Lock()
	defer s.unit.Unlock()

	snapshot := s.Clone()
	if err := fn(); err != nil {
		s.Replace(snapshot)
		return err
	}

	return nil
}

// =============================================================================

// GetSupply implements the token.Service interface.
func (s *Sheet) GetSupply(ctx context.Context, contract asset.Name, code asset.SymbolCode) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tkn, exists := s.tokens[keyOf(contract, code)]
	if !exists {
		return asset.Asset{}, fmt.Errorf("%s@%s: %w", code, contract, token.ErrNotFound)
	}

	return tkn.Supply, nil
}

// GetBalance implements the token.Service interface.
func (s *Sheet) GetBalance(ctx context.Context, contract asset.Name, account asset.Name, code asset.SymbolCode) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tkn, exists := s.tokens[keyOf(contract, code)]
	if !exists {
		return asset.New(0, asset.Symbol{Code: code}), nil
	}

	return asset.New(tkn.Balances[account], tkn.Supply.Symbol), nil
}

// VoterStaked implements the token.Staking interface.
func (s *Sheet) VoterStaked(ctx context.Context, account asset.Name) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stakes[account].VoterStaked, nil
}

// PendingRefund implements the token.Staking interface.
func (s *Sheet) PendingRefund(ctx context.Context, account asset.Name) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stakes[account].PendingRefund, nil
}

// RexFund implements the token.Staking interface.
func (s *Sheet) RexFund(ctx context.Context, account asset.Name) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stakes[account].RexFund, nil
}

// SetStake replaces the staking position of the account.
func (s *Sheet) SetStake(account asset.Name, stake Stake) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stakes[account] = stake
}

// =============================================================================

// Dispatch implements the outbox.Dispatcher interface. The instructions are
// applied in order to a copy of the sheet which replaces the current state
// only when every instruction succeeds.
func (s *Sheet) Dispatch(ctx context.Context, batch outbox.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.cloneLocked()
	for i, ins := range batch.Instructions {
		if err := ctx.Err(); err != nil {
			return outbox.NewDispatchError(batch.ID, i, err)
		}
		if err := work.apply(ins); err != nil {
			return outbox.NewDispatchError(batch.ID, i, err)
		}
	}

	s.tokens = work.tokens
	s.stakes = work.stakes

	return nil
}

// Create adds a new token to the contract.
func (s *Sheet) Create(contract asset.Name, issuer asset.Name, maxSupply asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.create(contract, issuer, maxSupply)
}

// Issue adds new supply to the balance of the issuer.
func (s *Sheet) Issue(contract asset.Name, to asset.Name, quantity asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issue(contract, to, quantity)
}

// Transfer moves a quantity between two accounts.
func (s *Sheet) Transfer(contract asset.Name, from asset.Name, to asset.Name, quantity asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transfer(contract, from, to, quantity)
}

// =============================================================================

func (s *Sheet) apply(ins outbox.Instruction) error {
	switch ins.Action {
	case outbox.ActionCreate:
		return s.create(ins.Contract, ins.To, ins.Quantity)
	case outbox.ActionIssue:
		return s.issue(ins.Contract, ins.To, ins.Quantity)
	case outbox.ActionRetire:
		return s.retire(ins.Contract, ins.From, ins.Quantity)
	case outbox.ActionTransfer:
		return s.transfer(ins.Contract, ins.From, ins.To, ins.Quantity)
	}

	return fmt.Errorf("unknown action %q", ins.Action)
}

func (s *Sheet) create(contract asset.Name, issuer asset.Name, maxSupply asset.Asset) error {
	if !maxSupply.IsValid() || maxSupply.Amount <= 0 {
		return fmt.Errorf("max supply %s: %w", maxSupply, ErrInvalidQuantity)
	}

	key := keyOf(contract, maxSupply.Symbol.Code)
	if _, exists := s.tokens[key]; exists {
		return fmt.Errorf("%s@%s: %w", maxSupply.Symbol.Code, contract, ErrTokenExists)
	}

	s.tokens[key] = Token{
		Contract:  contract,
		Supply:    asset.New(0, maxSupply.Symbol),
		MaxSupply: maxSupply,
		Issuer:    issuer,
		Balances:  make(map[asset.Name]int64),
	}

	return nil
}

func (s *Sheet) issue(contract asset.Name, to asset.Name, quantity asset.Asset) error {
	tkn, err := s.lookup(contract, quantity)
	if err != nil {
		return err
	}

	if to != tkn.Issuer {
		return ErrNotIssuer
	}

	if quantity.Amount > tkn.MaxSupply.Amount-tkn.Supply.Amount {
		return ErrExceedsMaxSupply
	}

	tkn.Supply.Amount += quantity.Amount
	tkn.Balances[to] += quantity.Amount
	s.tokens[keyOf(contract, quantity.Symbol.Code)] = tkn

	return nil
}

func (s *Sheet) retire(contract asset.Name, from asset.Name, quantity asset.Asset) error {
	tkn, err := s.lookup(contract, quantity)
	if err != nil {
		return err
	}

	if from != tkn.Issuer {
		return ErrNotIssuer
	}

	if quantity.Amount > tkn.Balances[from] {
		return fmt.Errorf("%s retiring %s: %w", from, quantity, ErrInsufficientBalance)
	}

	tkn.Supply.Amount -= quantity.Amount
	tkn.Balances[from] -= quantity.Amount
	s.tokens[keyOf(contract, quantity.Symbol.Code)] = tkn

	return nil
}

func (s *Sheet) transfer(contract asset.Name, from asset.Name, to asset.Name, quantity asset.Asset) error {
	if from == to {
		return ErrSelfTransfer
	}

	tkn, err := s.lookup(contract, quantity)
	if err != nil {
		return err
	}

	if quantity.Amount > tkn.Balances[from] {
		return fmt.Errorf("%s sending %s: %w", from, quantity, ErrInsufficientBalance)
	}

	tkn.Balances[from] -= quantity.Amount
	tkn.Balances[to] += quantity.Amount
	s.tokens[keyOf(contract, quantity.Symbol.Code)] = tkn

	return nil
}

// lookup returns the token the quantity is expressed in after checking the
// quantity is positive and carries the token precision.
func (s *Sheet) lookup(contract asset.Name, quantity asset.Asset) (Token, error) {
	if !quantity.IsValid() || quantity.Amount <= 0 {
		return Token{}, fmt.Errorf("%s: %w", quantity, ErrInvalidQuantity)
	}

	tkn, exists := s.tokens[keyOf(contract, quantity.Symbol.Code)]
	if !exists {
		return Token{}, fmt.Errorf("%s@%s: %w", quantity.Symbol.Code, contract, token.ErrNotFound)
	}

	if tkn.Supply.Symbol != quantity.Symbol {
		return Token{}, fmt.Errorf("%s: %w", quantity, asset.ErrSymbolMismatch)
	}

	return tkn, nil
}

func (s *Sheet) cloneLocked() *Sheet {
	c := Sheet{
		tokens: make(map[tokenKey]Token, len(s.tokens)),
		stakes: make(map[asset.Name]Stake, len(s.stakes)),
	}

	for key, tkn := range s.tokens {
		c.tokens[key] = cloneToken(tkn)
	}
	for account, stake := range s.stakes {
		c.stakes[account] = stake
	}

	return &c
}

func cloneToken(tkn Token) Token {
	balances := make(map[asset.Name]int64, len(tkn.Balances))
	for account, amount := range tkn.Balances {
		balances[account] = amount
	}
	tkn.Balances = balances

	return tkn
}

func keyOf(contract asset.Name, code asset.SymbolCode) tokenKey {
	return tokenKey{contract: contract, code: code}
}
