package workitem

import "github.com/colonyops/cadence/internal/core/period"

// Pointer records the last period for which an item's transition check was
// resolved. The zero value is Unset: the item has never been evaluated.
type Pointer struct {
	key period.Key
	set bool
}

// Unset returns the pointer of an item that has never been evaluated.
func Unset() Pointer { return Pointer{} }

// Recorded returns a pointer at key.
func Recorded(key period.Key) Pointer { return Pointer{key: key, set: true} }

// Key returns the recorded key and whether one is set.
func (p Pointer) Key() (period.Key, bool) { return p.key, p.set }

// IsSet reports whether a period has been recorded.
func (p Pointer) IsSet() bool { return p.set }

// Equal reports whether two pointers are in the same state.
func (p Pointer) Equal(o Pointer) bool { return p == o }

func (p Pointer) String() string {
	if !p.set {
		return "unset"
	}
	return string(p.key)
}
