package entity

// Refusal classifies why a user-initiated operation was refused. Refusals
// are ordinary return values, never errors: the UI layer renders them as
// feedback, while real errors (storage, browser API) travel separately.
type Refusal string

const (
	RefusalNone             Refusal = ""
	RefusalFull             Refusal = "full"
	RefusalAlreadyAdded     Refusal = "already_added"
	RefusalNotFound         Refusal = "not_found"
	RefusalDuplicateName    Refusal = "duplicate_name"
	RefusalIdenticalContent Refusal = "identical_content"
	RefusalEmptySource      Refusal = "empty_source"
	RefusalRestricted       Refusal = "restricted"
	RefusalInvalidName      Refusal = "invalid_name"
)

// Outcome is the typed result of a user-initiated mutation.
type Outcome struct {
	OK      bool    `json:"ok"`
	Refusal Refusal `json:"-"`
	Reason  string  `json:"reason,omitempty"`
	Slot    int     `json:"slot,omitempty"`
}

// Accept returns a successful outcome.
func Accept() Outcome {
	return Outcome{OK: true}
}

// AcceptSlot returns a successful outcome carrying a slot number.
func AcceptSlot(slot int) Outcome {
	return Outcome{OK: true, Slot: slot}
}

// Refuse returns a refused outcome with a UI-renderable reason.
func Refuse(refusal Refusal, reason string) Outcome {
	return Outcome{OK: false, Refusal: refusal, Reason: reason}
}

// RefuseSlot returns a refused outcome carrying the conflicting slot.
// Used by AlreadyAdded so the UI can point at the existing entry.
func RefuseSlot(refusal Refusal, reason string, slot int) Outcome {
	return Outcome{OK: false, Refusal: refusal, Reason: reason, Slot: slot}
}
