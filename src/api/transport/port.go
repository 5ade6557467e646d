package transport

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinPort = 1024
	MaxPort = 65535
)

// ValidatePort returns n when it is a usable unprivileged TCP port.
func ValidatePort(n int) (int, error) {
	if n < MinPort || n > MaxPort {
		return 0, fmt.Errorf("%w: %d is outside [%d, %d]", ErrInvalidPort, n, MinPort, MaxPort)
	}
	return n, nil
}

// ParsePort parses a decimal port argument and validates it.
func ParsePort(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPort, s)
	}
	return ValidatePort(n)
}
