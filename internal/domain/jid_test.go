package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToPrimary(t *testing.T) {
	testCases := []struct {
		address        string
		expected       JID
		expectedMapped bool
	}{
		{"5491122334455@s.whatsapp.net", NewUserJID("5491122334455"), true},
		{"5491122334455:12@s.whatsapp.net", NewUserJID("5491122334455"), true},
		{"5491122334455@c.us", NewUserJID("5491122334455"), true},
		{"123456789012345@lid", NewUserJID("123456789012345"), true},
		{"98765abc@lid", NewUserJID("98765"), true},
		{"abcdef@lid", JID{}, false},
		{"120363041234567890@g.us", JID{}, false},
		{"status@broadcast", JID{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			jid, err := ParseJID(tc.address)
			if err != nil {
				t.Fatal("unexpected error ", err)
			}

			actual, mapped := jid.ToPrimary()
			if mapped != tc.expectedMapped {
				t.Fatalf("expected mapped=%t, got %t", tc.expectedMapped, mapped)
			}

			if diff := cmp.Diff(tc.expected, actual); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeDestination(t *testing.T) {
	testCases := []struct {
		destination string
		expected    string
		expectErr   bool
	}{
		{"5491122334455", "5491122334455@s.whatsapp.net", false},
		{"+54 9 11 2233-4455", "5491122334455@s.whatsapp.net", false},
		{"5491122334455@s.whatsapp.net", "5491122334455@s.whatsapp.net", false},
		{"123456789@lid", "123456789@lid", false},
		{"120363041234567890@g.us", "120363041234567890@g.us", false},
		{"", "", true},
		{"not-a-number", "", true},
		{"@s.whatsapp.net", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.destination, func(t *testing.T) {
			jid, err := NormalizeDestination(tc.destination)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tc.destination)
				}
				return
			}

			if err != nil {
				t.Fatal("unexpected error ", err)
			}

			if jid.String() != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, jid.String())
			}
		})
	}
}

func TestValidateTenantID(t *testing.T) {
	valid := []TenantID{"T1", "tenant-42", "a.b"}
	invalid := []TenantID{"", "  ", ".", "..", "../etc", "a/b", `a\b`}

	for _, id := range valid {
		if err := ValidateTenantID(id); err != nil {
			t.Errorf("expected %q to be valid, got %s", id, err)
		}
	}

	for _, id := range invalid {
		if err := ValidateTenantID(id); err == nil {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}
