package reconcile

import "fmt"

// Placement is the policy governing where final defaced outputs are written
// relative to the original dataset. It is a closed set: anything outside the
// three named modes is a configuration error.
type Placement int

const (
	// Adjacent writes a sibling dataset mirroring the original with every
	// applicable image silently replaced by its defaced version.
	Adjacent Placement = iota
	// Inplace overwrites the original raw images with their defaced
	// versions.
	Inplace
	// Derivatives leaves all outputs solely under the derivatives tree.
	Derivatives
)

// ParsePlacement validates an operator-supplied placement string.
func ParsePlacement(s string) (Placement, error) {
	switch s {
	case "adjacent":
		return Adjacent, nil
	case "inplace":
		return Inplace, nil
	case "derivatives":
		return Derivatives, nil
	}
	return 0, fmt.Errorf("invalid placement %q: must be one of adjacent, inplace, or derivatives", s)
}

func (p Placement) String() string {
	switch p {
	case Adjacent:
		return "adjacent"
	case Inplace:
		return "inplace"
	case Derivatives:
		return "derivatives"
	}
	return fmt.Sprintf("Placement(%d)", int(p))
}
