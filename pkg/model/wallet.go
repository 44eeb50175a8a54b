package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"parkshare/pkg/credits"
	apperrors "parkshare/pkg/errors"
)

type TransactionState string

const (
	Pending   TransactionState = "pending"
	Confirmed TransactionState = "confirmed"
)

type TransactionKind string

const (
	KindBookingCharge TransactionKind = "booking_charge"
	KindLendingCredit TransactionKind = "lending_credit"
	KindRequestCharge TransactionKind = "request_charge"
	KindRequestCredit TransactionKind = "request_credit"
	KindReversal      TransactionKind = "reversal"
	KindTopUp         TransactionKind = "top_up"
)

// CreditsTransaction is one ledger line. Lines are never removed; a cancellation
// is recorded as a reversal line pointing at the original through Reverses.
type CreditsTransaction struct {
	ID        int64            `json:"id" bson:"id"`
	Reference string           `json:"reference" bson:"reference"`
	Kind      TransactionKind  `json:"kind" bson:"kind"`
	Subject   string           `json:"subject,omitempty" bson:"subject,omitempty"`
	Credits   credits.Credits  `json:"credits" bson:"credits"`
	State     TransactionState `json:"state" bson:"state"`
	Reverses  string           `json:"reverses,omitempty" bson:"reverses,omitempty"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
}

// TransactionRequest describes a line to append. Reference is the idempotency key.
type TransactionRequest struct {
	Reference string
	Kind      TransactionKind
	Subject   string
	Credits   credits.Credits
	State     TransactionState
}

type Wallet struct {
	ID           string               `json:"id" bson:"_id"`
	UserID       string               `json:"user_id" bson:"user_id"`
	Transactions []CreditsTransaction `json:"transactions" bson:"transactions"`
	Version      int64                `json:"version" bson:"version"`
	CreatedAt    time.Time            `json:"created_at" bson:"created_at"`
}

func NewWallet(now time.Time, userID string) (*Wallet, error) {
	if err := checkVar("user id", userID, "required,notblank"); err != nil {
		return nil, err
	}
	return &Wallet{
		ID:           uuid.NewString(),
		UserID:       userID,
		Transactions: []CreditsTransaction{},
		CreatedAt:    now,
	}, nil
}

// Apply appends a transaction unless one with the same reference exists. A
// replay with identical content returns the stored line with applied=false;
// reusing a reference for different content is a conflict.
func (w *Wallet) Apply(now time.Time, req TransactionRequest) (CreditsTransaction, bool, error) {
	if err := checkVar("transaction reference", req.Reference, "required,notblank"); err != nil {
		return CreditsTransaction{}, false, err
	}
	if req.State != Pending && req.State != Confirmed {
		return CreditsTransaction{}, false, apperrors.InvalidInput(fmt.Sprintf("unknown transaction state %q", req.State))
	}
	if existing, ok := w.Transaction(req.Reference); ok {
		if existing.Kind != req.Kind || existing.Subject != req.Subject || !existing.Credits.Equal(req.Credits) {
			return CreditsTransaction{}, false, apperrors.Business(apperrors.CodeWalletTransactionConflict,
				fmt.Sprintf("reference %s was already used for a different transaction", req.Reference))
		}
		return existing, false, nil
	}

	tx := CreditsTransaction{
		ID:        w.nextID(),
		Reference: req.Reference,
		Kind:      req.Kind,
		Subject:   req.Subject,
		Credits:   req.Credits,
		State:     req.State,
		CreatedAt: now,
	}
	w.Transactions = append(w.Transactions, tx)
	return tx, true, nil
}

// Debit records a confirmed charge. amount is the positive price.
func (w *Wallet) Debit(now time.Time, reference string, kind TransactionKind, subject string, amount credits.Credits) (CreditsTransaction, bool, error) {
	return w.Apply(now, TransactionRequest{
		Reference: reference,
		Kind:      kind,
		Subject:   subject,
		Credits:   amount.Neg(),
		State:     Confirmed,
	})
}

// CreditPending records money owed to the wallet owner once the lent period elapses.
func (w *Wallet) CreditPending(now time.Time, reference string, kind TransactionKind, subject string, amount credits.Credits) (CreditsTransaction, bool, error) {
	return w.Apply(now, TransactionRequest{
		Reference: reference,
		Kind:      kind,
		Subject:   subject,
		Credits:   amount,
		State:     Pending,
	})
}

func (w *Wallet) TopUp(now time.Time, reference string, amount credits.Credits) (CreditsTransaction, bool, error) {
	if !amount.IsPositive() {
		return CreditsTransaction{}, false, apperrors.InvalidInput("top up amount must be positive")
	}
	return w.Apply(now, TransactionRequest{
		Reference: reference,
		Kind:      KindTopUp,
		Credits:   amount,
		State:     Confirmed,
	})
}

// ConfirmPending moves the pending lines of subject to confirmed in place and
// returns how many changed. A repeated call returns 0.
func (w *Wallet) ConfirmPending(subject string) int {
	confirmed := 0
	for i := range w.Transactions {
		tx := &w.Transactions[i]
		if tx.Subject == subject && tx.State == Pending {
			tx.State = Confirmed
			confirmed++
		}
	}
	return confirmed
}

// Reverse appends the compensating line for reference. It is idempotent on
// reversalReference.
func (w *Wallet) Reverse(now time.Time, reference, reversalReference string) (CreditsTransaction, bool, error) {
	original, ok := w.Transaction(reference)
	if !ok {
		return CreditsTransaction{}, false, apperrors.Business(apperrors.CodeWalletTransactionNotFound,
			fmt.Sprintf("transaction %s not found", reference))
	}
	if original.Kind == KindReversal {
		return CreditsTransaction{}, false, apperrors.InvalidInput("a reversal cannot be reversed")
	}
	if prior, ok := w.reversalOf(reference); ok && prior.Reference != reversalReference {
		return prior, false, nil
	}

	tx, applied, err := w.Apply(now, TransactionRequest{
		Reference: reversalReference,
		Kind:      KindReversal,
		Subject:   original.Subject,
		Credits:   original.Credits.Neg(),
		State:     original.State,
	})
	if err != nil {
		return CreditsTransaction{}, false, err
	}
	if applied {
		w.Transactions[len(w.Transactions)-1].Reverses = reference
		tx.Reverses = reference
	}
	return tx, applied, nil
}

// ReverseSubject compensates every line of subject that has not been reversed yet.
func (w *Wallet) ReverseSubject(now time.Time, subject string) ([]CreditsTransaction, error) {
	var toReverse []string
	for _, tx := range w.Transactions {
		if tx.Subject != subject || tx.Kind == KindReversal {
			continue
		}
		if _, done := w.reversalOf(tx.Reference); done {
			continue
		}
		toReverse = append(toReverse, tx.Reference)
	}

	reversed := make([]CreditsTransaction, 0, len(toReverse))
	for _, ref := range toReverse {
		tx, _, err := w.Reverse(now, ref, ReversalReference(ref))
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, tx)
	}
	return reversed, nil
}

func ReversalReference(reference string) string {
	return "reversal:" + reference
}

func (w *Wallet) Transaction(reference string) (CreditsTransaction, bool) {
	for _, tx := range w.Transactions {
		if tx.Reference == reference {
			return tx, true
		}
	}
	return CreditsTransaction{}, false
}

// IsReversed reports whether a compensating line exists for reference.
func (w *Wallet) IsReversed(reference string) bool {
	_, ok := w.reversalOf(reference)
	return ok
}

func (w *Wallet) TransactionsFor(subject string) []CreditsTransaction {
	out := []CreditsTransaction{}
	for _, tx := range w.Transactions {
		if tx.Subject == subject {
			out = append(out, tx)
		}
	}
	return out
}

// Credits is the confirmed balance.
func (w *Wallet) Credits() credits.Credits {
	return w.sum(Confirmed)
}

// PendingCredits is what the owner will receive once lent periods elapse.
func (w *Wallet) PendingCredits() credits.Credits {
	return w.sum(Pending)
}

func (w *Wallet) sum(state TransactionState) credits.Credits {
	total := credits.Zero
	for _, tx := range w.Transactions {
		if tx.State == state {
			total = total.Add(tx.Credits)
		}
	}
	return total
}

func (w *Wallet) reversalOf(reference string) (CreditsTransaction, bool) {
	for _, tx := range w.Transactions {
		if tx.Kind == KindReversal && tx.Reverses == reference {
			return tx, true
		}
	}
	return CreditsTransaction{}, false
}

func (w *Wallet) nextID() int64 {
	if len(w.Transactions) == 0 {
		return 1
	}
	return w.Transactions[len(w.Transactions)-1].ID + 1
}
