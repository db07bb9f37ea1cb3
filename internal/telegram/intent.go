package telegram

import "strings"

// IntentKind classifies an inbound chat message.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentStart
	IntentHelp
	IntentSubscribe
	IntentUnsubscribe
	IntentCityQuery
)

func (k IntentKind) String() string {
	switch k {
	case IntentStart:
		return "start"
	case IntentHelp:
		return "help"
	case IntentSubscribe:
		return "subscribe"
	case IntentUnsubscribe:
		return "unsubscribe"
	case IntentCityQuery:
		return "city"
	default:
		return "unknown"
	}
}

// Intent is the routing decision for one message. City is set only for
// IntentCityQuery.
type Intent struct {
	Kind IntentKind
	City string
}

var commandPrefixes = []struct {
	prefix string
	kind   IntentKind
}{
	{"/start", IntentStart},
	{"/help", IntentHelp},
	{"/subscribe", IntentSubscribe},
	{"/unsubscribe", IntentUnsubscribe},
}

// ParseIntent maps message text to exactly one intent. Commands are matched by
// prefix in a fixed order; other slash-prefixed text is unknown and anything
// else is a city query.
func ParseIntent(text string) Intent {
	trimmed := strings.TrimSpace(text)

	for _, cmd := range commandPrefixes {
		if strings.HasPrefix(trimmed, cmd.prefix) {
			return Intent{Kind: cmd.kind}
		}
	}

	if strings.HasPrefix(trimmed, "/") {
		return Intent{Kind: IntentUnknown}
	}

	return Intent{Kind: IntentCityQuery, City: strings.ToLower(trimmed)}
}
