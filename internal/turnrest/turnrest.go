// Package turnrest mints coturn-compatible ephemeral TURN credentials.
//
// The scheme is coturn's --use-auth-secret mode (draft-uberti-behave-turn-rest):
//
//	username   = <unix_expiry>:<prefix>:<connection_id_or_random>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// A TURN server sharing the secret validates the credential and rejects it
// after expiry, so leaked credentials go stale instead of living forever.
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string

	// Now and RandomID exist for deterministic tests; nil means the real
	// clock and crypto/rand.
	Now      func() time.Time
	RandomID func() (string, error)
}

type Generator struct {
	secret []byte
	ttl    time.Duration
	prefix string

	now      func() time.Time
	randomID func() (string, error)
}

type Credentials struct {
	Username   string
	Credential string
	ExpiresAt  time.Time
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("turnrest: shared secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("turnrest: TTL must be > 0")
	}
	if strings.Contains(cfg.UsernamePrefix, ":") {
		// Colons delimit the username fields; a prefix containing one would
		// corrupt the expiry parse on the TURN side.
		return nil, errors.New("turnrest: username prefix must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RandomID == nil {
		cfg.RandomID = randomHexID
	}
	return &Generator{
		secret:   []byte(cfg.SharedSecret),
		ttl:      cfg.TTL,
		prefix:   cfg.UsernamePrefix,
		now:      cfg.Now,
		randomID: cfg.RandomID,
	}, nil
}

// Generate mints credentials tied to the given connection ID. An empty ID is
// replaced with a random one so unauthenticated handout requests still get
// distinct usernames.
func (g *Generator) Generate(connectionID string) (Credentials, error) {
	if connectionID == "" {
		id, err := g.randomID()
		if err != nil {
			return Credentials{}, fmt.Errorf("turnrest: random id: %w", err)
		}
		connectionID = id
	}
	if strings.Contains(connectionID, ":") {
		return Credentials{}, errors.New("turnrest: connection id must not contain ':'")
	}

	expiresAt := g.now().UTC().Add(g.ttl)
	username := strconv.FormatInt(expiresAt.Unix(), 10) + ":" + g.prefix + ":" + connectionID

	mac := hmac.New(sha1.New, g.secret)
	mac.Write([]byte(username))

	return Credentials{
		Username:   username,
		Credential: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		ExpiresAt:  expiresAt,
	}, nil
}

func randomHexID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
