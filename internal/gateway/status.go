package gateway

import "strings"

type statusAction int

const (
	statusHeartbeat statusAction = iota
	statusOnline
	statusOffline
)

// classifyStatus maps a free-form status payload to a transition. Offline
// words are checked first so "disconnected" is not read as "connected".
func classifyStatus(payload []byte) statusAction {
	s := strings.ToLower(strings.TrimSpace(string(payload)))
	switch {
	case strings.Contains(s, "offline"), strings.Contains(s, "disconnected"):
		return statusOffline
	case strings.Contains(s, "online"), strings.Contains(s, "connected"):
		return statusOnline
	default:
		return statusHeartbeat
	}
}
