package smp

// Change reports whether an operation modified anything.
type Change bool

const (
	Unchanged Change = false
	Changed   Change = true
)

// IsChanged reports whether c is Changed
func (c Change) IsChanged() bool { return bool(c) }

// Or returns Changed if either c or o is Changed
func (c Change) Or(o Change) Change { return c || o }

func (c Change) String() string {
	if c {
		return "changed"
	}
	return "unchanged"
}
