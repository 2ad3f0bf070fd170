package followers

import (
	"sort"
	"strings"
)

// Snapshot maps follower account id to normalized handle
type Snapshot map[string]string

// AlertHeader opens every unfollower alert body
const AlertHeader = "The following accounts have unfollowed you:\n\n"

// InstanceDomain turns an instance URL into the bare domain used to qualify
// local handles: the scheme and any trailing slashes are removed
func InstanceDomain(instanceURL string) string {
	domain := strings.TrimPrefix(instanceURL, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimRight(domain, "/")
}

// NormalizeHandle returns acct in user@domain form. Remote accounts already
// carry their domain; local ones get the instance domain appended.
func NormalizeHandle(acct, domain string) string {
	if strings.Contains(acct, "@") {
		return acct
	}
	return acct + "@" + domain
}

// Diff returns the handles stored in previous for every id missing from
// next, sorted
func Diff(previous, next Snapshot) []string {
	var removed []string
	for id, handle := range previous {
		if _, ok := next[id]; !ok {
			removed = append(removed, handle)
		}
	}
	sort.Strings(removed)
	return removed
}

// AlertBody renders the alert text, one @handle per line
func AlertBody(removed []string) string {
	var b strings.Builder
	b.WriteString(AlertHeader)
	for _, handle := range removed {
		b.WriteString("@")
		b.WriteString(handle)
		b.WriteString("\n")
	}
	return b.String()
}
