package constants

// FieldStatus is the outcome of matching one field rule against a label.
type FieldStatus string

const (
	FieldMatched   FieldStatus = "MATCHED"   // exactly one accepted reading
	FieldAmbiguous FieldStatus = "AMBIGUOUS" // conflicting readings within the margin
	FieldAbsent    FieldStatus = "ABSENT"    // nothing crossed the threshold
)

// ItemState is the lifecycle of one image inside a verification run.
type ItemState string

// Stable values (reported verbatim to callers).
const (
	ItemPending    ItemState = "PENDING"
	ItemExtracting ItemState = "EXTRACTING"
	ItemMatching   ItemState = "MATCHING"
	ItemDone       ItemState = "DONE"      // verdict built
	ItemFailed     ItemState = "FAILED"    // terminal: extraction error or timeout
	ItemCancelled  ItemState = "CANCELLED" // terminal: skipped or aborted by the caller
)

// Terminal reports whether no further transitions can happen.
func (s ItemState) Terminal() bool {
	return s == ItemDone || s == ItemFailed || s == ItemCancelled
}
