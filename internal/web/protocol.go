package web

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/coordinator"
)

// Every frame in either direction is {"event": name, "data": payload}.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeMessage(msg coordinator.Message) ([]byte, bool) {
	data, err := json.Marshal(outboundFrame{Event: msg.MessageName(), Data: msg})
	if err != nil {
		log.WithError(err).WithField("event", msg.MessageName()).Error("Failed to encode message")
		return nil, false
	}
	return data, true
}

var (
	errUnknownEvent = errors.New("unknown event")
	errBadPayload   = errors.New("bad payload")
)

type findMatchPayload struct {
	Mode    coordinator.Mode `json:"mode"`
	Setting int              `json:"setting"`
}

type matchRefPayload struct {
	MatchID string `json:"matchId"`
}

type progressPayload struct {
	MatchID  string `json:"matchId"`
	Progress int    `json:"progress"`
}

type finishedPayload struct {
	MatchID  string  `json:"matchId"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
}

// decodeCommand turns one inbound frame from player into a coordinator command.
func decodeCommand(player coordinator.Player, raw []byte) (coordinator.Command, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPayload, err)
	}

	switch frame.Event {
	case "findMatch":
		var p findMatchPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			return nil, err
		}
		return coordinator.FindMatch{Player: player, Mode: p.Mode, Setting: p.Setting}, nil

	case "joinMatchRoom", "getMatchData", "playerStartedTyping", "requestResults":
		var p matchRefPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			return nil, err
		}
		if p.MatchID == "" {
			return nil, fmt.Errorf("%w: matchId is required", errBadPayload)
		}
		switch frame.Event {
		case "joinMatchRoom":
			return coordinator.JoinMatchRoom{Player: player, MatchID: p.MatchID}, nil
		case "getMatchData":
			return coordinator.GetMatchData{Player: player, MatchID: p.MatchID}, nil
		case "playerStartedTyping":
			return coordinator.PlayerStartedTyping{Player: player, MatchID: p.MatchID}, nil
		default:
			return coordinator.RequestResults{Player: player, MatchID: p.MatchID}, nil
		}

	case "playerProgress":
		var p progressPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			return nil, err
		}
		if p.MatchID == "" {
			return nil, fmt.Errorf("%w: matchId is required", errBadPayload)
		}
		return coordinator.PlayerProgress{Player: player, MatchID: p.MatchID, Progress: p.Progress}, nil

	case "playerFinished":
		var p finishedPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			return nil, err
		}
		if p.MatchID == "" {
			return nil, fmt.Errorf("%w: matchId is required", errBadPayload)
		}
		return coordinator.PlayerFinished{
			Player:   player,
			MatchID:  p.MatchID,
			WPM:      p.WPM,
			Accuracy: p.Accuracy,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", errUnknownEvent, frame.Event)
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", errBadPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

// rejectMessage is the matchError text for a frame that could not be decoded.
func rejectMessage(err error) string {
	if errors.Is(err, errUnknownEvent) {
		return "Unknown event."
	}
	return "Invalid request."
}
