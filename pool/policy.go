package pool

import (
	"fmt"
	"strings"
)

// RecyclingPolicy controls what happens to a connection on release.
type RecyclingPolicy int

const (
	// RecycleLIFO returns released connections to the top of the idle stack,
	// so the most recently used connection is handed out next.
	RecycleLIFO RecyclingPolicy = iota
	// RecycleFIFO cycles connections evenly through the idle queue, which
	// keeps long-idle connections from going stale at the bottom.
	RecycleFIFO
	// DisconnectAlways tears every connection down on release instead of
	// recycling it.
	DisconnectAlways
)

func (p RecyclingPolicy) String() string {
	switch p {
	case RecycleLIFO:
		return "lifo"
	case RecycleFIFO:
		return "fifo"
	case DisconnectAlways:
		return "disconnect-always"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseRecyclingPolicy maps a config string to a policy. Empty input means
// the LIFO default.
func ParseRecyclingPolicy(s string) (RecyclingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lifo", "stack":
		return RecycleLIFO, nil
	case "fifo", "queue":
		return RecycleFIFO, nil
	case "disconnect-always", "disconnect":
		return DisconnectAlways, nil
	default:
		return RecycleLIFO, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
