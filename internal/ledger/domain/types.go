package domain

// EntryType classifies a bank ledger entry.
type EntryType string

const (
	Deposit    EntryType = "DEPOSIT"
	Withdraw   EntryType = "WITHDRAW"
	Adjustment EntryType = "ADJUSTMENT"
)

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	return t == Deposit || t == Withdraw || t == Adjustment
}

// TouchesReconciled reports whether applying an entry of this type also
// moves the reconciled balance. Only manual adjustments against a real bank
// statement do.
func (t EntryType) TouchesReconciled() bool {
	return t == Adjustment
}
