package protocol

import "time"

var defaultTTLs = map[string]time.Duration{
	TypeStoreKeepalive:   30 * time.Second,
	TypeDisplayHeartbeat: 90 * time.Second,
	TypeDisplayRegister:  5 * time.Minute,

	// A dropped order event is recovered by the next pull.
	TypeOrderCreated:       10 * time.Minute,
	TypeOrderStatusChanged: 10 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	return expired(env.ExpiresAt, time.Now())
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	return expired(hdr.ExpiresAt, time.Now())
}

func expired(exp, now time.Time) bool {
	return !exp.IsZero() && now.UTC().After(exp)
}
