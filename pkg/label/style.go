package label

import "fmt"

// Style is the visual category of a defect. The class id in label files
// encodes it.
type Style int

const (
	Bright Style = iota // class 0
	Gray                // class 1
)

// Styles lists both styles in class order.
var Styles = []Style{Bright, Gray}

// Class returns the class id written to label files.
func (s Style) Class() int { return int(s) }

// Suffix returns the short tag used in file names ("b" or "g").
func (s Style) Suffix() string {
	if s == Gray {
		return "g"
	}
	return "b"
}

func (s Style) String() string {
	switch s {
	case Bright:
		return "bright"
	case Gray:
		return "gray"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// StyleOf maps a class id to its style.
func StyleOf(class int) (Style, bool) {
	switch class {
	case 0:
		return Bright, true
	case 1:
		return Gray, true
	default:
		return 0, false
	}
}

// ParseStyle accepts "bright", "gray", "b" or "g".
func ParseStyle(s string) (Style, error) {
	switch s {
	case "bright", "b":
		return Bright, nil
	case "gray", "g":
		return Gray, nil
	default:
		return 0, fmt.Errorf("invalid style: %q (must be 'bright' or 'gray')", s)
	}
}
