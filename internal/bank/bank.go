package bank

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDebtors is returned when a loss would be divided by a zero debtor
	// count. Generation never produces this state.
	ErrNoDebtors = errors.New("creditor has no debtors")
	// ErrAlreadyDefaulted is returned when TriggerDefault is called twice.
	ErrAlreadyDefaulted = errors.New("bank already defaulted")
	// ErrSelfLoan is returned when a bank is connected to itself.
	ErrSelfLoan = errors.New("bank cannot borrow from itself")
)

// Params holds the balance-sheet values every bank of a network starts with.
// ExternalAssets is shared by all banks and never changes.
type Params struct {
	InterbankAssets float64 `yaml:"interbank_assets" json:"interbank_assets"`
	Liabilities     float64 `yaml:"liabilities" json:"liabilities"`
	ExternalAssets  float64 `yaml:"external_assets" json:"external_assets"`
}

// DefaultParams returns the calibration used by the reference model.
func DefaultParams() Params {
	return Params{
		InterbankAssets: 0.2,
		Liabilities:     0.96,
		ExternalAssets:  0.8,
	}
}

// Bank is one node of the lending network.
type Bank struct {
	id              int
	interbankAssets float64
	liabilities     float64
	defaulted       bool
	creditors       []*Bank
	debtorCount     int

	shared *Params
}

// New creates a solvent bank. All banks of one network should share the
// same *Params so the external asset value stays network-wide.
func New(id int, params *Params) *Bank {
	return &Bank{
		id:              id,
		interbankAssets: params.InterbankAssets,
		liabilities:     params.Liabilities,
		shared:          params,
	}
}

func (b *Bank) ID() int { return b.id }
func (b *Bank) InterbankAssets() float64 { return b.interbankAssets }
func (b *Bank) ExternalAssets() float64 { return b.shared.ExternalAssets }
func (b *Bank) Liabilities() float64 { return b.liabilities }
func (b *Bank) Defaulted() bool { return b.defaulted }
func (b *Bank) DebtorCount() int { return b.debtorCount }
func (b *Bank) TotalAssets() float64 { return b.interbankAssets + b.shared.ExternalAssets }
func (b *Bank) Solvent() bool { return b.TotalAssets() >= b.liabilities }
func (b *Bank) String() string { return fmt.Sprintf("bank-%d", b.id) }

// Creditors returns the banks this bank owes money to, in connection order.
func (b *Bank) Creditors() []*Bank {
	out := make([]*Bank, len(b.creditors))
	copy(out, b.creditors)
	return out
}

// ConnectTo records that b borrows from creditor.
func (b *Bank) ConnectTo(creditor *Bank) error {
	if creditor == b {
		return fmt.Errorf("%w: bank %d", ErrSelfLoan, b.id)
	}
	b.creditors = append(b.creditors, creditor)
	creditor.debtorCount++
	return nil
}

// AbsorbLoss writes down interbank assets. A solvent-to-insolvent bank that
// has not yet defaulted is queued on pending; it is not marked defaulted here.
func (b *Bank) AbsorbLoss(amount float64, pending *Worklist) {
	b.interbankAssets -= amount
	if !b.defaulted && !b.Solvent() {
		pending.Push(b)
	}
}

// TriggerDefault marks the bank defaulted and passes losses to every creditor
// that has not itself defaulted. Each creditor's share is scaled by that
// creditor's debtor count.
func (b *Bank) TriggerDefault(pending *Worklist) error {
	if b.defaulted {
		return fmt.Errorf("%w: bank %d", ErrAlreadyDefaulted, b.id)
	}
	b.defaulted = true

	for _, creditor := range b.creditors {
		if creditor.defaulted {
			continue
		}
		if creditor.debtorCount == 0 {
			return fmt.Errorf("%w: bank %d owed by bank %d", ErrNoDebtors, creditor.id, b.id)
		}
		creditor.AbsorbLoss(b.interbankAssets/float64(creditor.debtorCount), pending)
	}
	return nil
}
