package push

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/coordinator"
)

// Sender delivers one payload to several users.
type Sender interface {
	SendToMultipleUsers(ctx context.Context, userIDs []string, payload NotificationPayload)
}

// Notifier listens to coordinator events and sends push notifications
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Run starts listening to coordinator events
func (n *Notifier) Run(ctx context.Context, events <-chan coordinator.Event) {
	log.Info("Push notifier started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Push notifier stopped")
			return

		case event := <-events:
			n.handleEvent(ctx, event)
		}
	}
}

func (n *Notifier) handleEvent(ctx context.Context, event coordinator.Event) {
	switch e := event.(type) {
	case coordinator.MatchCreated:
		n.handleMatchCreated(ctx, e)
	case coordinator.MatchCompleted:
		n.handleMatchCompleted(ctx, e)
	}
}

func (n *Notifier) handleMatchCreated(ctx context.Context, event coordinator.MatchCreated) {
	for i, p := range event.Players {
		opponent := event.Players[1-i]
		n.sender.SendToMultipleUsers(ctx, []string{p.ID}, NotificationPayload{
			Title: "Match found!",
			Body:  fmt.Sprintf("You vs %s (%d). Get ready to type.", opponent.Username, opponent.Rating),
			Tag:   "match-found",
			Data: map[string]interface{}{
				"matchId": event.MatchID,
				"url":     "/match/" + event.MatchID,
			},
		})
	}
}

func (n *Notifier) handleMatchCompleted(ctx context.Context, event coordinator.MatchCompleted) {
	for _, p := range event.Result.Players {
		headline := "Draw"
		if w := event.Result.WinnerID; w != nil {
			headline = "Defeat"
			if *w == p.ID {
				headline = "Victory"
			}
		}
		n.sender.SendToMultipleUsers(ctx, []string{p.ID}, NotificationPayload{
			Title: headline,
			Body:  fmt.Sprintf("Score %d. Rating %d → %d.", p.FinalScore, p.OldRating, p.NewRating),
			Tag:   "match-result",
			Data: map[string]interface{}{
				"matchId": event.MatchID,
				"url":     "/results/" + event.MatchID,
			},
		})
	}
}
