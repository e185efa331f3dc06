package ws

import (
	"encoding/json"
	"strings"

	"evslot/backend/services/reservation-service/internal/models"
)

// Inbound events.
const (
	EventSubscribeToCharger     = "subscribeToCharger"
	EventUnsubscribeFromCharger = "unsubscribeFromCharger"
	EventSubscribeToStation     = "subscribeToStation"
	EventUnsubscribeFromStation = "unsubscribeFromStation"
)

// Replies.
const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type subscription struct {
	ChargerID string `json:"chargerId"`
	StationID string `json:"stationId"`
}

// RoomReply acknowledges a subscription change.
type RoomReply struct {
	Room string `json:"room"`
}

// ErrorReply reports a rejected frame.
type ErrorReply struct {
	Message string `json:"message"`
}

// EncodeFrame renders an outbound frame.
func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: payload})
}

// resolve maps an inbound frame to the room it targets and whether it is a join.
func resolve(frame Frame) (room string, join bool, errMsg string) {
	var sub subscription
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &sub); err != nil {
			return "", false, "invalid data"
		}
	}

	switch frame.Event {
	case EventSubscribeToCharger, EventUnsubscribeFromCharger:
		id := strings.TrimSpace(sub.ChargerID)
		if id == "" {
			return "", false, "chargerId is required"
		}
		return models.ChargerRoom(id), frame.Event == EventSubscribeToCharger, ""
	case EventSubscribeToStation, EventUnsubscribeFromStation:
		id := strings.TrimSpace(sub.StationID)
		if id == "" {
			return "", false, "stationId is required"
		}
		return models.StationRoom(id), frame.Event == EventSubscribeToStation, ""
	case "":
		return "", false, "event is required"
	default:
		return "", false, "unknown event " + frame.Event
	}
}
