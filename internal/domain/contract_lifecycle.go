package domain

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusActive:     {ContractStatusRenewed, ContractStatusTerminated},
	ContractStatusRenewed:    {},
	ContractStatusTerminated: {},
}

// CanTransitionContract returns true when a contract transition is allowed.
func CanTransitionContract(from, to ContractStatus) bool {
	for _, candidate := range contractTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ContinuityKind classifies how a renewal's start relates to its predecessor's end.
type ContinuityKind string

const (
	ContinuityContiguous ContinuityKind = "contiguous"
	ContinuityGap        ContinuityKind = "gap"
	ContinuityOverlap    ContinuityKind = "overlap"
)

// RenewalContinuity describes the seam between a contract and its successor.
// Days is the number of uncovered days for a gap and the number of doubly
// covered days for an overlap.
type RenewalContinuity struct {
	Kind    ContinuityKind
	Days    int
	Flagged bool
}

// ClassifyRenewal compares a predecessor's end date with the successor's start.
func ClassifyRenewal(predecessor, successor DateRange) RenewalContinuity {
	delta := DaysBetween(predecessor.End, successor.Start)
	switch {
	case delta == 1:
		return RenewalContinuity{Kind: ContinuityContiguous}
	case delta > 1:
		return RenewalContinuity{Kind: ContinuityGap, Days: delta - 1}
	default:
		return RenewalContinuity{Kind: ContinuityOverlap, Days: 1 - delta}
	}
}
