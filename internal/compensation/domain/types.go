package domain

// Status is the disbursement state of a household compensation record.
//
//	PENDING ──disburse──▶ DISBURSED ──refund──▶ HOLD ──disburse──▶ DISBURSED
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDisbursed Status = "DISBURSED"
	StatusHold      Status = "HOLD"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusDisbursed || s == StatusHold
}

// CanDisburse reports whether a disbursement may move the record forward.
func (s Status) CanDisburse() bool {
	return s == StatusPending || s == StatusHold
}

// CanRefund reports whether money can be returned from this state.
func (s Status) CanRefund() bool {
	return s == StatusDisbursed
}

// AcceptsSupplementary reports whether ad-hoc amounts may still be added.
func (s Status) AcceptsSupplementary() bool {
	return s != StatusDisbursed
}
