package events

import (
	"strings"

	"github.com/example/telemetry-sdk/internal/request"
)

// PushMode selects the push environment a token is registered for.
type PushMode int

const (
	PushProduction  PushMode = 0
	PushDevelopment PushMode = 1
	PushAdHoc       PushMode = 2
)

// PushToken is the payload registering a push token for the platform os.
func PushToken(os, token string, mode PushMode) request.Payload {
	payload := request.Payload{
		"token_session": 1,
		"test_mode":     int(mode),
	}
	payload[strings.ToLower(os)+"_token"] = token
	return payload
}

// PushOpen is recorded when a notification is opened.
func PushOpen(messageID string) Event {
	return pushEvent(PushOpenKey, messageID, nil)
}

// PushAction is recorded when a notification action button is pressed.
func PushAction(messageID string, button int) Event {
	return pushEvent(PushActionKey, messageID, map[string]any{"b": button})
}

// PushSent is recorded when a notification is delivered to the device.
func PushSent(messageID string) Event {
	return pushEvent(PushSentKey, messageID, nil)
}

func pushEvent(key, messageID string, extra map[string]any) Event {
	seg := map[string]any{"i": messageID}
	for k, v := range extra {
		seg[k] = v
	}
	return Event{Key: key, Count: 1, Segmentation: seg}
}
