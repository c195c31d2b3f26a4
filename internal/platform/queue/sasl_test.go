package queue

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestSaslDialerMechanisms(t *testing.T) {
	for _, mechanism := range []string{"plain", "PLAIN", "scram-sha-256", "scram-sha-512"} {
		t.Run(mechanism, func(t *testing.T) {
			dialer, err := saslDialer(&SaslConfig{SaslMechanism: mechanism, SaslUsername: "user", SaslPassword: "pass"})
			assert.Equal(t, err, nil)
			assert.NotEqual(t, dialer.SASLMechanism, nil)
		})
	}
}

func TestSaslDialerRejectsUnknownMechanism(t *testing.T) {
	_, err := saslDialer(&SaslConfig{SaslMechanism: "gssapi", SaslUsername: "user"})
	assert.NotEqual(t, err, nil)
}

func TestSaslDialerRequiresReadableCA(t *testing.T) {
	_, err := saslDialer(&SaslConfig{SaslMechanism: "plain", SaslUsername: "user", KafkaCA: "/does/not/exist.pem"})
	assert.NotEqual(t, err, nil)
}
