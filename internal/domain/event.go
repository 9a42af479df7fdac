package domain

import json "github.com/goccy/go-json"

// Event is one encoded server frame addressed to every member of a room.
type Event struct {
	Room             string          `json:"room"`
	Type             FrameType       `json:"type"`
	ExcludeSessionID string          `json:"exclude_session_id,omitempty"`
	Data             json.RawMessage `json:"data"`
}

func NewEvent(room string, frameType FrameType, frame any, excludeSessionID string) (Event, error) {
	data, err := EncodeFrame(frame)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Room:             room,
		Type:             frameType,
		ExcludeSessionID: excludeSessionID,
		Data:             data,
	}, nil
}
