// Package outbox accumulates the token instructions produced while handling an
// event so they can be dispatched as one batch after the ledger is updated.
package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/google/uuid"
)

// Action represents the kind of token instruction.
type Action string

// Set of actions a token transfer service understands.
const (
	ActionCreate   Action = "create"
	ActionIssue    Action = "issue"
	ActionRetire   Action = "retire"
	ActionTransfer Action = "transfer"
)

// Instruction is a single fire and forget request for the token transfer
// service. For create, Quantity carries the maximum supply and To the issuer.
type Instruction struct {
	ID       uuid.UUID   `json:"id"`
	Action   Action      `json:"action"`
	Contract asset.Name  `json:"contract"`
	From     asset.Name  `json:"from,omitempty"`
	To       asset.Name  `json:"to,omitempty"`
	Quantity asset.Asset `json:"quantity"`
	Memo     string      `json:"memo,omitempty"`
}

// String implements the fmt.Stringer interface.
func (ins Instruction) String() string {
	switch ins.Action {
	case ActionTransfer:
		return fmt.Sprintf("transfer %s@%s %s->%s %q", ins.Quantity, ins.Contract, ins.From, ins.To, ins.Memo)
	case ActionCreate:
		return fmt.Sprintf("create %s@%s issuer %s", ins.Quantity, ins.Contract, ins.To)
	default:
		return fmt.Sprintf("%s %s@%s %q", ins.Action, ins.Quantity, ins.Contract, ins.Memo)
	}
}

// Batch is the ordered set of instructions produced by one event.
type Batch struct {
	ID           uuid.UUID     `json:"id"`
	Instructions []Instruction `json:"instructions"`
}

// =============================================================================

// Dispatcher represents the write side of a token transfer service. The
// instructions of a batch are applied in order and either all take effect or
// none do.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch Batch) error
}

// DispatchError correlates a failed dispatch with the instruction that caused
// it. Index is -1 when the failure is not tied to one instruction.
type DispatchError struct {
	BatchID uuid.UUID
	Index   int
	Err     error
}

// NewDispatchError constructs a dispatch error for the specified instruction.
func NewDispatchError(batchID uuid.UUID, index int, err error) *DispatchError {
	return &DispatchError{
		BatchID: batchID,
		Index:   index,
		Err:     err,
	}
}

// Error implements the error interface.
func (de *DispatchError) Error() string {
	if de.Index < 0 {
		return fmt.Sprintf("dispatch batch %s: %s", de.BatchID, de.Err)
	}
	return fmt.Sprintf("dispatch batch %s instruction %d: %s", de.BatchID, de.Index, de.Err)
}

// Unwrap provides access to the underlying error.
func (de *DispatchError) Unwrap() error {
	return de.Err
}

// =============================================================================

// Outbox collects instructions for a single batch.
type Outbox struct {
	batch Batch
}

// New constructs an empty outbox with a fresh batch id.
func New() *Outbox {
	return &Outbox{
		batch: Batch{
			ID: uuid.New(),
		},
	}
}

// ID returns the batch id.
func (o *Outbox) ID() uuid.UUID {
	return o.batch.ID
}

// Len returns the number of queued instructions.
func (o *Outbox) Len() int {
	return len(o.batch.Instructions)
}

// Create queues the creation of a token with the specified maximum supply.
func (o *Outbox) Create(contract asset.Name, issuer asset.Name, maxSupply asset.Asset) {
	o.add(Instruction{
		Action:   ActionCreate,
		Contract: contract,
		To:       issuer,
		Quantity: maxSupply,
	})
}

// Issue queues new supply for the issuer.
func (o *Outbox) Issue(contract asset.Name, issuer asset.Name, quantity asset.Asset, memo string) {
	o.add(Instruction{
		Action:   ActionIssue,
		Contract: contract,
		To:       issuer,
		Quantity: quantity,
		Memo:     memo,
	})
}

// Retire queues the removal of supply held by the issuer.
func (o *Outbox) Retire(contract asset.Name, issuer asset.Name, quantity asset.Asset, memo string) {
	o.add(Instruction{
		Action:   ActionRetire,
		Contract: contract,
		From:     issuer,
		Quantity: quantity,
		Memo:     memo,
	})
}

// Transfer queues a transfer between two accounts.
func (o *Outbox) Transfer(contract asset.Name, from asset.Name, to asset.Name, quantity asset.Asset, memo string) {
	o.add(Instruction{
		Action:   ActionTransfer,
		Contract: contract,
		From:     from,
		To:       to,
		Quantity: quantity,
		Memo:     memo,
	})
}

// Batch returns a copy of the accumulated batch.
func (o *Outbox) Batch() Batch {
	ins := make([]Instruction, len(o.batch.Instructions))
	copy(ins, o.batch.Instructions)

	return Batch{
		ID:           o.batch.ID,
		Instructions: ins,
	}
}

// Flush hands the batch to the dispatcher. An empty batch is not dispatched.
// Errors that do not already carry the batch id are wrapped in a DispatchError.
func (o *Outbox) Flush(ctx context.Context, d Dispatcher) (Batch, error) {
	batch := o.Batch()
	if len(batch.Instructions) == 0 {
		return batch, nil
	}

	if err := d.Dispatch(ctx, batch); err != nil {
		var de *DispatchError
		if errors.As(err, &de) && de.BatchID == batch.ID {
			return batch, err
		}
		return batch, NewDispatchError(batch.ID, -1, err)
	}

	return batch, nil
}

func (o *Outbox) add(ins Instruction) {
	ins.ID = uuid.New()
	o.batch.Instructions = append(o.batch.Instructions, ins)
}
