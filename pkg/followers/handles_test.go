package followers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceDomain(t *testing.T) {
	tests := map[string]string{
		"https://mastodon.social":   "mastodon.social",
		"https://mastodon.social/":  "mastodon.social",
		"http://localhost:3000//":   "localhost:3000",
		"example.social":            "example.social",
		"https://example.social/m/": "example.social/m",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, InstanceDomain(in))
		})
	}
}

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "user@example.social", NormalizeHandle("user", "example.social"))
	assert.Equal(t, "bob@other.social", NormalizeHandle("bob@other.social", "example.social"))

	// Idempotent on already-normalized handles.
	for _, acct := range []string{"user", "bob@other.social"} {
		once := NormalizeHandle(acct, "example.social")
		assert.Equal(t, once, NormalizeHandle(once, "example.social"))
	}
}

func TestDiff(t *testing.T) {
	previous := Snapshot{"A": "a@x", "B": "b@x"}

	assert.Equal(t, []string{"b@x"}, Diff(previous, Snapshot{"A": "a@x"}))
	assert.Equal(t, []string{"a@x", "b@x"}, Diff(previous, Snapshot{}))
	assert.Empty(t, Diff(previous, Snapshot{"A": "a@x", "B": "b@x", "C": "c@x"}))
	assert.Empty(t, Diff(Snapshot{}, Snapshot{"A": "a@x"}))

	// The old handle is reported even if the account renamed itself.
	assert.Equal(t, []string{"old@x"}, Diff(Snapshot{"A": "old@x"}, Snapshot{}))
	assert.Empty(t, Diff(Snapshot{"A": "old@x"}, Snapshot{"A": "new@x"}))
}

func TestAlertBody(t *testing.T) {
	body := AlertBody([]string{"a@x", "b@y"})
	assert.Equal(t, "The following accounts have unfollowed you:\n\n@a@x\n@b@y\n", body)
}
