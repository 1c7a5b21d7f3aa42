package period

import (
	"fmt"
	"strconv"
	"time"
)

// Label renders a key for display, e.g. "March 2024", "Q2 2024", "H1 2024"
// or "2024". Keys that do not parse are returned unchanged.
func Label(k Key) string {
	parts, err := k.Parts()
	if err != nil {
		return string(k)
	}

	switch parts.Periodicity {
	case Monthly:
		return fmt.Sprintf("%s %d", time.Month(parts.Index), parts.Year)
	case Quarterly:
		return fmt.Sprintf("Q%d %d", parts.Index, parts.Year)
	case BiAnnually:
		return fmt.Sprintf("H%d %d", parts.Index, parts.Year)
	default:
		return strconv.Itoa(parts.Year)
	}
}
