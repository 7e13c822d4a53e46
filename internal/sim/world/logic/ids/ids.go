package ids

import (
	"fmt"
	"strconv"
	"strings"
)

func AgentID(n uint64) string {
	return fmt.Sprintf("A%d", n)
}

// ParseAgentID returns the number of an id made by AgentID.
func ParseAgentID(id string) (uint64, bool) {
	rest, ok := strings.CutPrefix(id, "A")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
