package coordinator

import "errors"

var (
	ErrInvalidMode     = errors.New("invalid mode")
	ErrInvalidSetting  = errors.New("invalid setting")
	ErrAlreadyInMatch  = errors.New("already in a match")
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotInMatch      = errors.New("player not in this match")
	ErrMatchNotRunning = errors.New("match not running")
	ErrNotQueued       = errors.New("player not in queue")
	ErrStopped         = errors.New("coordinator stopped")

	ErrMatchGone        = errors.New("match not found or already resolved")
	ErrOpponentNotFound = errors.New("opponent not found")
	errLookupFailed     = errors.New("match lookup failed")
	errRecordFailed     = errors.New("recording match result failed")
)

// clientMessages are the texts players see in matchError for known failures.
var clientMessages = map[error]string{
	ErrInvalidMode:      "Invalid game mode.",
	ErrInvalidSetting:   "Invalid game setting.",
	ErrAlreadyInMatch:   "You are already in a match.",
	ErrMatchNotFound:    "Match not found.",
	ErrNotInMatch:       "You are not a player in this match.",
	ErrMatchNotRunning:  "Match has not started.",
	ErrMatchGone:        "Match not found or already resolved.",
	ErrOpponentNotFound: "Opponent not found.",
	errLookupFailed:     "Failed to retrieve match data.",
	errRecordFailed:     "Failed to record match result.",
}

// ClientMessage maps an error to the text sent to the client.
func ClientMessage(err error) string {
	for target, msg := range clientMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return "Something went wrong."
}
