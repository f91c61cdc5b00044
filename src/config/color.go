package config

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// RGB is an outline colour on the 0-255 scale.
type RGB struct {
	R, G, B uint8
}

// ParseRGB accepts "#rrggbb", "rrggbb" or "r,g,b".
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return RGB{}, fmt.Errorf("colour %q: want three components", s)
		}
		var c [3]uint8
		for i, p := range parts {
			n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return RGB{}, fmt.Errorf("colour %q: component %d: %w", s, i+1, err)
			}
			c[i] = uint8(n)
		}
		return RGB{R: c[0], G: c[1], B: c[2]}, nil
	}

	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("colour %q: want #rrggbb or r,g,b", s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return RGB{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return RGB{R: b[0], G: b[1], B: b[2]}, nil
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *RGB) UnmarshalText(text []byte) error {
	v, err := ParseRGB(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
