package harmony

import (
	"fmt"
	"strings"
)

// Color is the category an actor belongs to.
type Color int

const (
	ColorRed Color = iota
	ColorBlue
)

// Colors lists every color in a fixed order.
var Colors = [...]Color{ColorRed, ColorBlue}

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorBlue:
		return "blue"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

// Other returns the opposite color.
func (c Color) Other() Color {
	if c == ColorRed {
		return ColorBlue
	}
	return ColorRed
}

func (c Color) valid() bool {
	return c == ColorRed || c == ColorBlue
}

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return ColorRed, nil
	case "blue":
		return ColorBlue, nil
	default:
		return 0, NewError(ErrorStatusInvalidRequest, fmt.Errorf("unknown color '%s'", s))
	}
}

// Actor is a unit of demand. The caller owns it; the controller only tracks it by ID
// between Arrive and Depart.
type Actor struct {
	ID    string
	Color Color
}

func (a Actor) String() string {
	return fmt.Sprintf("%s(%s)", a.ID, a.Color)
}
