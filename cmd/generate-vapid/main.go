// Command generate-vapid creates a VAPID key pair for web push and writes it
// in .env format.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"
)

func main() {
	out := flag.String("out", "./data/vapid_keys.env", "file to write the keys to")
	subject := flag.String("subject", "mailto:admin@example.com", "VAPID subject (mailto: or https: URL)")
	flag.Parse()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.WithError(err).Fatal("Failed to generate VAPID keys")
	}
	if err := checkKey(publicKey); err != nil {
		log.WithError(err).Fatal("Generated public key is not valid")
	}

	content := renderEnv(publicKey, privateKey, *subject)

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.WithError(err).Fatal("Failed to create output directory")
	}
	if err := os.WriteFile(*out, []byte(content), 0o600); err != nil {
		log.WithError(err).Fatal("Failed to write keys to file")
	}

	log.WithField("path", *out).Info("VAPID keys generated")
	fmt.Print(content)
}

func renderEnv(publicKey, privateKey, subject string) string {
	return fmt.Sprintf(`# Web Push VAPID keys for typeduel
# Add these to your .env file or export them as environment variables

VAPID_PUBLIC_KEY=%s
VAPID_PRIVATE_KEY=%s
VAPID_SUBJECT=%s
`, publicKey, privateKey, subject)
}

// checkKey verifies the public key is an uncompressed P-256 point in base64url.
func checkKey(publicKey string) error {
	raw, err := base64.RawURLEncoding.DecodeString(publicKey)
	if err != nil {
		return fmt.Errorf("not base64url: %w", err)
	}
	if len(raw) != 65 || raw[0] != 0x04 {
		return fmt.Errorf("unexpected key length %d", len(raw))
	}
	return nil
}
