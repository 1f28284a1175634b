package coordinator

// Message is an outbound wire event. MessageName is the event name on the wire.
type Message interface {
	MessageName() string
}

// Opponent is the public view of a player.
type Opponent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

func (p Player) Public() Opponent {
	return Opponent{ID: p.ID, Username: p.Username, Rating: p.Rating}
}

type Connected struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

func (Connected) MessageName() string { return "connected" }

type MatchFound struct {
	MatchID  string   `json:"matchId"`
	Opponent Opponent `json:"opponent"`
	Text     string   `json:"text"`
	Mode     Mode     `json:"mode"`
	Setting  int      `json:"setting"`
}

func (MatchFound) MessageName() string { return "matchFound" }

type PreGameCountdown struct {
	Countdown int `json:"countdown"`
}

func (PreGameCountdown) MessageName() string { return "preGameCountdown" }

type GameStart struct{}

func (GameStart) MessageName() string { return "gameStart" }

type MatchAborted struct {
	Message string `json:"message"`
}

func (MatchAborted) MessageName() string { return "matchAborted" }

type TimerUpdate struct {
	RemainingTime int `json:"remainingTime"`
}

func (TimerUpdate) MessageName() string { return "timerUpdate" }

// GameOver tells a timed room that the clock ran out.
type GameOver struct{}

func (GameOver) MessageName() string { return "gameOver" }

type OpponentProgress struct {
	PlayerID string `json:"playerId"`
	Progress int    `json:"progress"`
}

func (OpponentProgress) MessageName() string { return "opponentProgress" }

type ResultPlayer struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	WPM        float64 `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	FinalScore int     `json:"finalScore"`
	OldRating  int     `json:"oldRating"`
	NewRating  int     `json:"newRating"`
}

// MatchResult is broadcast once per match. WinnerID is nil on a draw.
type MatchResult struct {
	WinnerID *string        `json:"winnerId"`
	Players  []ResultPlayer `json:"players"`
}

func (MatchResult) MessageName() string { return "matchResult" }

type MatchDataResponse struct {
	MatchID  string   `json:"matchId"`
	Text     string   `json:"text"`
	Opponent Opponent `json:"opponent"`
	Mode     Mode     `json:"mode,omitempty"`
	Setting  int      `json:"setting,omitempty"`
}

func (MatchDataResponse) MessageName() string { return "matchDataResponse" }

type MatchError struct {
	Message string `json:"message"`
}

func (MatchError) MessageName() string { return "matchError" }
