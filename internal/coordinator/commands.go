package coordinator

// Command is the interface for all commands sent to the coordinator.
type Command interface {
	command() // marker method
}

// FindMatch asks to join the queue bucket for Mode/Setting.
type FindMatch struct {
	Player  Player
	Mode    Mode
	Setting int
}

func (FindMatch) command() {}

// JoinMatchRoom subscribes the player's connection to a match room, e.g. after a reconnect.
type JoinMatchRoom struct {
	Player  Player
	MatchID string
}

func (JoinMatchRoom) command() {}

// GetMatchData asks for the text and opponent of a match.
type GetMatchData struct {
	Player  Player
	MatchID string
}

func (GetMatchData) command() {}

// PlayerStartedTyping is the first keystroke signal.
type PlayerStartedTyping struct {
	Player  Player
	MatchID string
}

func (PlayerStartedTyping) command() {}

// PlayerProgress is relayed to the opponent only.
type PlayerProgress struct {
	Player   Player
	MatchID  string
	Progress int
}

func (PlayerProgress) command() {}

// PlayerFinished reports a player's final stats.
type PlayerFinished struct {
	Player   Player
	MatchID  string
	WPM      float64
	Accuracy float64
}

func (PlayerFinished) command() {}

// RequestResults asks for aggregation once both players have finished.
type RequestResults struct {
	Player  Player
	MatchID string
}

func (RequestResults) command() {}

// Disconnect is sent when a connection closes.
type Disconnect struct {
	Player Player
}

func (Disconnect) command() {}

// AdminKickFromQueue removes a player from the queue.
type AdminKickFromQueue struct {
	PlayerID string
	Response chan error
}

func (AdminKickFromQueue) command() {}

// Reject is sent back to a connection whose inbound frame could not be turned
// into a command. It goes through the loop so it is ordered with other replies.
type Reject struct {
	ConnID  string
	Message string
}

func (Reject) command() {}

// timerFired is delivered by an armed timer's goroutine.
type timerFired struct {
	Key timerKey
	Seq uint64
}

func (timerFired) command() {}

// getStateCmd is an internal command to safely get a state snapshot.
type getStateCmd struct {
	Response chan Snapshot
}

func (getStateCmd) command() {}
