package domain

import "strconv"

// IdentityKind distinguishes how an execution unit was resolved.
type IdentityKind uint8

const (
	// Unbound callers run outside any bracket and outside the scheduler.
	Unbound IdentityKind = iota
	// Flow is a dedicated execution flow stamped into a context by Watch.
	Flow
	// Slot is a cooperative scheduler slot shared by many logical tasks.
	Slot
)

// Identity keys the coordinator's registries. It is comparable.
type Identity struct {
	Kind IdentityKind
	Slot int
	Flow uint64
}

func SlotIdentity(slot int) Identity { return Identity{Kind: Slot, Slot: slot} }
func FlowIdentity(id uint64) Identity { return Identity{Kind: Flow, Flow: id} }

func (i Identity) IsSlot() bool  { return i.Kind == Slot }
func (i Identity) IsBound() bool { return i.Kind != Unbound }

func (i Identity) String() string {
	switch i.Kind {
	case Slot:
		return "slot:" + strconv.Itoa(i.Slot)
	case Flow:
		return "flow:" + strconv.FormatUint(i.Flow, 10)
	default:
		return "unbound"
	}
}
