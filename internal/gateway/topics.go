package gateway

import (
	"errors"
	"strconv"
	"strings"
)

var ErrMalformedTopic = errors.New("malformed topic")

type Kind int

const (
	KindTelemetry Kind = iota + 1
	KindHeartbeat
	KindStatus
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindTelemetry:
		return "telemetry"
	case KindHeartbeat:
		return "heartbeat"
	case KindStatus:
		return "status"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (Kind, bool) {
	switch s {
	case "telemetry":
		return KindTelemetry, true
	case "heartbeat":
		return KindHeartbeat, true
	case "status":
		return KindStatus, true
	case "command":
		return KindCommand, true
	}
	return 0, false
}

// inboundKinds are the kinds devices publish and the gateway subscribes to.
var inboundKinds = []Kind{KindTelemetry, KindHeartbeat, KindStatus}

type Route struct {
	Kind     Kind
	DeviceID int64
}

// TopicMatcher parses and builds topics of the form {prefix}/device/{id}/{kind}.
type TopicMatcher struct {
	prefix []string
	base   string
}

func NewTopicMatcher(prefix string) *TopicMatcher {
	prefix = strings.Trim(prefix, "/")
	var segs []string
	if prefix != "" {
		segs = strings.Split(prefix, "/")
	}
	return &TopicMatcher{prefix: segs, base: prefix}
}

func (m *TopicMatcher) Match(topic string) (Route, error) {
	segs := strings.Split(topic, "/")
	n := len(m.prefix)
	if len(segs) != n+3 {
		return Route{}, ErrMalformedTopic
	}
	for i, p := range m.prefix {
		if segs[i] != p {
			return Route{}, ErrMalformedTopic
		}
	}
	if segs[n] != "device" {
		return Route{}, ErrMalformedTopic
	}
	id, ok := parseDeviceID(segs[n+1])
	if !ok {
		return Route{}, ErrMalformedTopic
	}
	kind, ok := ParseKind(segs[n+2])
	if !ok {
		return Route{}, ErrMalformedTopic
	}
	return Route{Kind: kind, DeviceID: id}, nil
}

// parseDeviceID accepts ASCII digits only; signs, hex and spaces are rejected.
func parseDeviceID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (m *TopicMatcher) join(device, kind string) string {
	if m.base == "" {
		return "device/" + device + "/" + kind
	}
	return m.base + "/device/" + device + "/" + kind
}

func (m *TopicMatcher) Topic(deviceID int64, kind Kind) string {
	return m.join(strconv.FormatInt(deviceID, 10), kind.String())
}

func (m *TopicMatcher) Wildcard(kind Kind) string {
	return m.join("+", kind.String())
}

// DeviceTopics lists the concrete inbound topics of one device.
func (m *TopicMatcher) DeviceTopics(deviceID int64) []string {
	topics := make([]string, 0, len(inboundKinds))
	for _, k := range inboundKinds {
		topics = append(topics, m.Topic(deviceID, k))
	}
	return topics
}
