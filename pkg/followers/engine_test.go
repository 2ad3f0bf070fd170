package followers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mastowatch/pkg/checkpoint"
	errs "mastowatch/pkg/errors"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/mastodon"
	"mastowatch/pkg/notify"
)

// fakeClient serves followers pages keyed by URL
type fakeClient struct {
	base      string
	verifyErr error
	pages     map[string]*mastodon.FollowersPage
	pageErr   map[string]error
	requested []string
}

func (f *fakeClient) BaseURL() string { return f.base }

func (f *fakeClient) VerifyCredentials(ctx context.Context) (*mastodon.Account, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &mastodon.Account{ID: "42", Username: "owner"}, nil
}

func (f *fakeClient) FollowersPage(ctx context.Context, pageURL string) (*mastodon.FollowersPage, error) {
	f.requested = append(f.requested, pageURL)
	if err := f.pageErr[pageURL]; err != nil {
		return nil, err
	}
	page, ok := f.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("unexpected page %s", pageURL)
	}
	return page, nil
}

const firstPage = "https://example.social/api/v1/accounts/42/followers?limit=80"

func accounts(pairs ...string) []mastodon.Account {
	var out []mastodon.Account
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, mastodon.Account{ID: pairs[i], Acct: pairs[i+1]})
	}
	return out
}

func newFake() *fakeClient {
	return &fakeClient{
		base:    "https://example.social",
		pages:   map[string]*mastodon.FollowersPage{},
		pageErr: map[string]error{},
	}
}

// memoryStore keeps the snapshot in memory
type memoryStore struct {
	snapshot map[string]string
	saves    int
	saveErr  error
}

func (m *memoryStore) LoadFollowers() (map[string]string, error) {
	out := map[string]string{}
	for k, v := range m.snapshot {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) SaveFollowers(snapshot map[string]string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snapshot = snapshot
	return nil
}

type recordingNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (r *recordingNotifier) Notify(ctx context.Context, subject, body string) error {
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return r.err
}

func TestReconcileUnionOfPages(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{
		Accounts: accounts("1", "alice", "2", "bob@other.social"),
		Next:     "https://example.social/p2",
	}
	client.pages["https://example.social/p2"] = &mastodon.FollowersPage{
		Accounts: accounts("3", "carol", "1", "alice_renamed"),
		Next:     "https://example.social/p3",
	}
	client.pages["https://example.social/p3"] = &mastodon.FollowersPage{}

	engine := NewEngine(client, &memoryStore{}, nil, Options{}, logger.NewTestLogger())
	removed, next, err := engine.Reconcile(context.Background(), Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, Snapshot{
		"1": "alice_renamed@example.social",
		"2": "bob@other.social",
		"3": "carol@example.social",
	}, next)
	assert.Len(t, client.requested, 3)
}

func TestReconcileReportsRemovals(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{Accounts: accounts("A", "a@x")}

	engine := NewEngine(client, &memoryStore{}, nil, Options{}, logger.NewTestLogger())
	removed, next, err := engine.Reconcile(context.Background(), Snapshot{"A": "a@x", "B": "b@x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x"}, removed)
	assert.Equal(t, Snapshot{"A": "a@x"}, next)
}

func TestReconcileVerifyFailure(t *testing.T) {
	client := newFake()
	client.verifyErr = errs.New(errs.ErrorTypeAuth, 401, "bad token")

	engine := NewEngine(client, &memoryStore{}, nil, Options{}, logger.NewTestLogger())
	_, _, err := engine.Reconcile(context.Background(), Snapshot{})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
	assert.Empty(t, client.requested)
}

func TestReconcilePageFailureIsFatal(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{Accounts: accounts("1", "a"), Next: "https://example.social/p2"}
	client.pageErr["https://example.social/p2"] = errs.New(errs.ErrorTypeServerError, 502, "bad gateway")

	store := &memoryStore{snapshot: map[string]string{"1": "a@example.social", "2": "b@example.social"}}
	notifier := &recordingNotifier{}
	engine := NewEngine(client, store, notifier, Options{}, logger.NewTestLogger())

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Zero(t, store.saves, "a partial set is never persisted")
	assert.Empty(t, notifier.subjects)
}

func TestReconcileRevisitedURL(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{Accounts: accounts("1", "a"), Next: "https://example.social/p2"}
	client.pages["https://example.social/p2"] = &mastodon.FollowersPage{Accounts: accounts("2", "b"), Next: firstPage}

	engine := NewEngine(client, &memoryStore{}, nil, Options{}, logger.NewTestLogger())
	_, _, err := engine.Reconcile(context.Background(), Snapshot{})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypePagination, errs.TypeOf(err))
	assert.Len(t, client.requested, 2)
}

func TestReconcileMaxPages(t *testing.T) {
	client := newFake()
	url := firstPage
	for i := 0; i < 5; i++ {
		next := fmt.Sprintf("https://example.social/p%d", i+2)
		client.pages[url] = &mastodon.FollowersPage{Accounts: accounts(fmt.Sprint(i), "u"), Next: next}
		url = next
	}

	engine := NewEngine(client, &memoryStore{}, nil, Options{MaxPages: 3}, logger.NewTestLogger())
	_, _, err := engine.Reconcile(context.Background(), Snapshot{})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypePagination, errs.TypeOf(err))
	assert.Len(t, client.requested, 3)
}

func TestReconcileRemovalGuard(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{Accounts: accounts("1", "a")}
	previous := Snapshot{"1": "a@x", "2": "b@x", "3": "c@x", "4": "d@x"}

	guarded := NewEngine(client, &memoryStore{}, nil, Options{MaxRemovalRatio: 0.5}, logger.NewTestLogger())
	_, _, err := guarded.Reconcile(context.Background(), previous)
	assert.ErrorIs(t, err, ErrSuspiciousShrink)

	lenient := NewEngine(client, &memoryStore{}, nil, Options{MaxRemovalRatio: 0.8}, logger.NewTestLogger())
	removed, _, err := lenient.Reconcile(context.Background(), previous)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	disabled := NewEngine(client, &memoryStore{}, nil, Options{}, logger.NewTestLogger())
	removed, _, err = disabled.Reconcile(context.Background(), previous)
	require.NoError(t, err)
	assert.Len(t, removed, 3)
}

func TestRunNotifiesAndPersists(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{Accounts: accounts("A", "a@x")}

	store := &memoryStore{snapshot: map[string]string{"A": "a@x", "B": "b@x"}}
	notifier := &recordingNotifier{}
	engine := NewEngine(client, store, notifier, Options{}, logger.NewTestLogger())

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{"b@x"}, result.Removed)
	assert.True(t, result.Notified)

	require.Len(t, notifier.subjects, 1)
	assert.Equal(t, "Mastodon Unfollower Alert", notifier.subjects[0])
	assert.Equal(t, "The following accounts have unfollowed you:\n\n@b@x\n", notifier.bodies[0])
	assert.Equal(t, map[string]string{"A": "a@x"}, store.snapshot)
}

func TestRunWithoutRemovalsStillPersists(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{Accounts: accounts("A", "a@x", "C", "c")}

	store := &memoryStore{snapshot: map[string]string{"A": "a@x"}}
	notifier := &recordingNotifier{}
	engine := NewEngine(client, store, notifier, Options{}, logger.NewTestLogger())

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	assert.False(t, result.Notified)
	assert.Empty(t, notifier.subjects)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, map[string]string{"A": "a@x", "C": "c@example.social"}, store.snapshot)
}

func TestRunEmptyFollowerSet(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{}

	store := &memoryStore{snapshot: map[string]string{"A": "a@x", "B": "b@x"}}
	notifier := &recordingNotifier{}
	engine := NewEngine(client, store, notifier, Options{}, logger.NewTestLogger())

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x", "b@x"}, result.Removed)
	assert.Empty(t, store.snapshot)
	assert.NotNil(t, store.snapshot)
}

func TestRunNotifierFailureIsNotFatal(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{}

	store := &memoryStore{snapshot: map[string]string{"A": "a@x"}}
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	log := logger.NewTestLogger()
	engine := NewEngine(client, store, notifier, Options{Subject: "Custom"}, log)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Notified)
	assert.Equal(t, []string{"Custom"}, notifier.subjects)
	assert.Equal(t, 1, store.saves)
	assert.True(t, log.HasMessage("Failed to send unfollower alert"))
}

func TestRunSaveFailure(t *testing.T) {
	client := newFake()
	client.pages[firstPage] = &mastodon.FollowersPage{}

	store := &memoryStore{saveErr: errors.New("disk full")}
	engine := NewEngine(client, store, nil, Options{}, logger.NewTestLogger())

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunAgainstServer(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.URL.Path == "/api/v1/accounts/verify_credentials":
			fmt.Fprint(w, `{"id":"42","username":"owner","acct":"owner"}`)
		case r.URL.Path == "/api/v1/accounts/42/followers" && r.URL.Query().Get("max_id") == "":
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/accounts/42/followers?max_id=2>; rel="next"`, server.URL))
			fmt.Fprint(w, `[{"id":"3","acct":"carol"},{"id":"2","acct":"bob@other.social"}]`)
		case r.URL.Path == "/api/v1/accounts/42/followers":
			fmt.Fprint(w, `[{"id":"1","acct":"alice"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := mastodon.NewClient(server.URL, "tok", 5*time.Second, log)
	path := filepath.Join(t.TempDir(), "followers.json")
	store := checkpoint.NewFollowerStore(path, log)
	require.NoError(t, store.SaveFollowers(map[string]string{"1": "alice@x", "9": "zed@elsewhere.social"}))

	var alerts []string
	notifier := notify.NotifierFunc(func(ctx context.Context, subject, body string) error {
		alerts = append(alerts, body)
		return nil
	})

	engine := NewEngine(client, store, notifier, Options{}, log)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Followers)
	assert.Equal(t, []string{"zed@elsewhere.social"}, result.Removed)
	require.Len(t, alerts, 1)
	assert.True(t, strings.HasSuffix(alerts[0], "@zed@elsewhere.social\n"))

	host := strings.TrimPrefix(server.URL, "http://")
	saved, err := store.LoadFollowers()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"1": "alice@" + host,
		"2": "bob@other.social",
		"3": "carol@" + host,
	}, saved)
}
