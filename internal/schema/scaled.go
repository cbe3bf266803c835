package schema

import "fmt"

const maxInt64 = int64(^uint64(0) >> 1)

// ParseScaled parses a decimal string into an integer at the target scale.
// Extra fractional digits are truncated.
func ParseScaled(s string, scale Scale) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i++
	}
	var value int64
	frac := Scale(0)
	seenDot := false
	seenDigit := false
	for ; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if seenDot {
				return 0, fmt.Errorf("invalid number: %s", s)
			}
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid number: %s", s)
		}
		seenDigit = true
		if seenDot {
			if frac >= scale {
				continue
			}
			frac++
		}
		digit := int64(c - '0')
		if value > (maxInt64-digit)/10 {
			return 0, fmt.Errorf("number overflows: %s", s)
		}
		value = value*10 + digit
	}
	if !seenDigit {
		return 0, fmt.Errorf("invalid number: %s", s)
	}
	for ; frac < scale; frac++ {
		if value > maxInt64/10 {
			return 0, fmt.Errorf("number overflows: %s", s)
		}
		value *= 10
	}
	if neg {
		value = -value
	}
	return value, nil
}
