package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/store"
)

// SubscriptionStore is the part of the store the push service needs.
type SubscriptionStore interface {
	GetPushSubscriptions(ctx context.Context, userID string) ([]store.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

type sendFunc func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

type Service struct {
	store        SubscriptionStore
	vapidPublic  string
	vapidPrivate string
	vapidSubject string
	send         sendFunc
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string // mailto:your-email@example.com
}

// Enabled reports whether VAPID keys are configured.
func (c Config) Enabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func NewService(st SubscriptionStore, cfg Config) *Service {
	return &Service{
		store:        st,
		vapidPublic:  cfg.VAPIDPublicKey,
		vapidPrivate: cfg.VAPIDPrivateKey,
		vapidSubject: cfg.VAPIDSubject,
		send:         webpush.SendNotification,
	}
}

type NotificationPayload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Icon  string                 `json:"icon,omitempty"`
	Badge string                 `json:"badge,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
	Tag   string                 `json:"tag,omitempty"`
}

// SendToUser sends a push notification to all subscriptions of a user.
// It succeeds if at least one delivery succeeded or the user has none.
func (s *Service) SendToUser(ctx context.Context, userID string, payload NotificationPayload) error {
	subs, err := s.store.GetPushSubscriptions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get subscriptions: %w", err)
	}

	if len(subs) == 0 {
		log.WithField("user_id", userID).Debug("No push subscriptions")
		return nil
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	successCount := 0

	for _, sub := range subs {
		subscription := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := s.send(payloadBytes, subscription, &webpush.Options{
			Subscriber:      s.vapidSubject,
			VAPIDPublicKey:  s.vapidPublic,
			VAPIDPrivateKey: s.vapidPrivate,
			TTL:             60,
		})
		if err != nil {
			log.WithError(err).WithField("endpoint", sub.Endpoint).Warn("Failed to send push")
			lastErr = err
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			log.WithField("endpoint", sub.Endpoint).Info("Subscription expired, removing")
			if err := s.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
				log.WithError(err).Warn("Failed to delete subscription")
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			lastErr = fmt.Errorf("push failed with status %d", resp.StatusCode)
		default:
			successCount++
		}
	}

	if successCount > 0 {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("all push notifications failed")
}

// SendToMultipleUsers sends to each user in the background.
func (s *Service) SendToMultipleUsers(ctx context.Context, userIDs []string, payload NotificationPayload) {
	for _, userID := range userIDs {
		go func(id string) {
			if err := s.SendToUser(ctx, id, payload); err != nil {
				log.WithError(err).WithField("user_id", id).Warn("Failed to send push")
			}
		}(userID)
	}
}

// GetPublicKey returns the VAPID public key for frontend use
func (s *Service) GetPublicKey() string {
	return s.vapidPublic
}
