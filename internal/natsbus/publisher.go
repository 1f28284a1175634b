// Package natsbus publishes match lifecycle events to NATS so other services
// (stats, notifications, replays) can follow matches without polling.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/coordinator"
)

const DefaultSubjectPrefix = "typeduel.match"

const (
	EventCreated   = "created"
	EventAborted   = "aborted"
	EventCompleted = "completed"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// Connect dials NATS with unlimited reconnects.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("typeduel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.WithError(err).Error("NATS error")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	MatchID   string          `json:"matchId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type createdPayload struct {
	Mode      coordinator.Mode      `json:"mode"`
	Setting   int                   `json:"setting"`
	Text      string                `json:"text"`
	Players   [2]coordinator.Player `json:"players"`
	CreatedAt time.Time             `json:"createdAt"`
}

type abortedPayload struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

type completedPayload struct {
	Mode    coordinator.Mode        `json:"mode"`
	Setting int                     `json:"setting"`
	Result  coordinator.MatchResult `json:"result"`
	EndedAt time.Time               `json:"endedAt"`
}

// Publisher forwards coordinator events to NATS subjects under a prefix.
type Publisher struct {
	conn   Conn
	prefix string
	now    func() time.Time
}

func NewPublisher(conn Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix, now: time.Now}
}

// Run publishes events until ctx is cancelled or the channel closes.
func (p *Publisher) Run(ctx context.Context, events <-chan coordinator.Event) {
	log.WithField("prefix", p.prefix).Info("NATS publisher started")
	for {
		select {
		case <-ctx.Done():
			log.Info("NATS publisher shutting down")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := p.handleEvent(event); err != nil {
				log.WithError(err).Errorf("Failed to publish %T", event)
			}
		}
	}
}

func (p *Publisher) handleEvent(event coordinator.Event) error {
	switch e := event.(type) {
	case coordinator.MatchCreated:
		return p.publish(EventCreated, e.MatchID, createdPayload{
			Mode:      e.Mode,
			Setting:   e.Setting,
			Text:      e.Text,
			Players:   e.Players,
			CreatedAt: e.CreatedAt,
		})
	case coordinator.MatchCancelled:
		return p.publish(EventAborted, e.MatchID, abortedPayload{Reason: e.Reason, At: e.At})
	case coordinator.MatchCompleted:
		return p.publish(EventCompleted, e.MatchID, completedPayload{
			Mode:    e.Mode,
			Setting: e.Setting,
			Result:  e.Result,
			EndedAt: e.EndedAt,
		})
	}
	return nil
}

func (p *Publisher) publish(eventType, matchID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		MatchID:   matchID,
		Timestamp: p.now().UTC(),
		Payload:   raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.prefix + "." + eventType
	err = p.conn.PublishMsg(&nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{eventType},
			"Match-ID":   []string{matchID},
			"Event-ID":   []string{env.EventID},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject":  subject,
		"match_id": matchID,
		"event_id": env.EventID,
	}).Debug("Published match event")
	return nil
}
