package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "mastowatch/pkg/errors"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/ratelimit"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *logger.TestLogger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewTestLogger()
	return NewClient(server.URL+"/", "secret-token", 5*time.Second, log), log
}

func TestNewClient(t *testing.T) {
	client := NewClient("https://mastodon.social/", "tok", 30*time.Second, logger.NewTestLogger())

	assert.Equal(t, "https://mastodon.social", client.BaseURL())
	assert.Equal(t, "mastodon.social", client.host)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Nil(t, client.limiter)
}

func TestVerifyCredentials(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, VerifyCredentialsEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "mastowatch/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"id":"42","username":"alice","acct":"alice"}`)
	})

	account, err := client.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
	assert.Equal(t, "alice", account.Username)
}

func TestCheckResponseStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusUnprocessableEntity, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, log := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":"nope"}`)
			})

			_, err := client.VerifyCredentials(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.expected, errs.TypeOf(err))
			assert.Contains(t, err.Error(), "nope")

			var apiErr *errs.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Code)
			assert.True(t, log.HasMessage("failed to verify credentials"))
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	client, log := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{invalid json`)
	})

	_, err := client.VerifyCredentials(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "tok", time.Second, logger.NewTestLogger())
	_, err := client.VerifyCredentials(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestCancelledContextIsNotWrapped(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.VerifyCredentials(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiterGatesRequests(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"id":"1"}`)
	})
	client.SetLimiter(ratelimit.NewTokenBucket(1, time.Hour))

	_, err := client.VerifyCredentials(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.VerifyCredentials(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFollowersPagination(t *testing.T) {
	var serverURL string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/42/followers", r.URL.Path)
		switch r.URL.Query().Get("max_id") {
		case "":
			assert.Equal(t, "80", r.URL.Query().Get("limit"))
			w.Header().Add("Link", fmt.Sprintf(`<%s/api/v1/accounts/42/followers?limit=80&max_id=7>; rel="next", <%s/api/v1/accounts/42/followers?since_id=9>; rel="prev"`, serverURL, serverURL))
			fmt.Fprint(w, `[{"id":"9","acct":"bob"},{"id":"8","acct":"carol@other.social"}]`)
		case "7":
			w.Header().Add("Link", `</api/v1/accounts/42/followers?since_id=7>; rel="prev"`)
			fmt.Fprint(w, `[{"id":"7","acct":"dave"}]`)
		default:
			t.Errorf("unexpected page %s", r.URL.RawQuery)
		}
	})
	serverURL = client.BaseURL()

	page, err := client.FollowersPage(context.Background(), FollowersURL(client.BaseURL(), "42", 80))
	require.NoError(t, err)
	require.Len(t, page.Accounts, 2)
	assert.Equal(t, "carol@other.social", page.Accounts[1].Acct)
	require.NotEmpty(t, page.Next)

	page, err = client.FollowersPage(context.Background(), page.Next)
	require.NoError(t, err)
	require.Len(t, page.Accounts, 1)
	assert.Empty(t, page.Next)
}

func TestNextLink(t *testing.T) {
	current := "https://mastodon.social/api/v1/accounts/1/followers?limit=80"

	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{name: "none"},
		{
			name:   "absolute",
			values: []string{`<https://mastodon.social/api/v1/accounts/1/followers?max_id=5>; rel="next"`},
			want:   "https://mastodon.social/api/v1/accounts/1/followers?max_id=5",
		},
		{
			name:   "relative",
			values: []string{`</api/v1/accounts/1/followers?max_id=5>; rel="next"`},
			want:   "https://mastodon.social/api/v1/accounts/1/followers?max_id=5",
		},
		{
			name:   "split across headers",
			values: []string{`<https://a/prev>; rel="prev"`, `<https://a/next>; rel="next"`},
			want:   "https://a/next",
		},
		{
			name:   "prev only",
			values: []string{`<https://a/prev>; rel="prev"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			for _, v := range tt.values {
				header.Add("Link", v)
			}
			assert.Equal(t, tt.want, nextLink(header, current))
		})
	}
}

func TestAccountStatuses(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/42/statuses", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("since_id"))
		assert.Equal(t, "40", r.URL.Query().Get("limit"))
		assert.Equal(t, "103", r.URL.Query().Get("max_id"))
		fmt.Fprint(w, `[
			{"id":"102","content":"<p>new</p>","in_reply_to_id":null,"reblog":null,"media_attachments":[]},
			{"id":"101","content":"","in_reply_to_id":"99","reblog":null,"media_attachments":[]},
			{"id":"100","content":"","in_reply_to_id":null,"reblog":{"id":"5","content":"boosted"},
			 "media_attachments":[{"id":"m1","type":"image","url":"https://files/x.png","description":null}]}
		]`)
	})

	statuses, err := client.AccountStatuses(context.Background(), "42", "100", "103", 40)
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.False(t, statuses[0].IsReply())
	assert.False(t, statuses[0].IsReblog())
	assert.True(t, statuses[1].IsReply())
	assert.True(t, statuses[2].IsReblog())
	assert.Equal(t, "", statuses[2].MediaAttachments[0].AltText())
}

func TestLatestStatusID(t *testing.T) {
	body := `[{"id":"555"}]`
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("since_id"))
		fmt.Fprint(w, body)
	})

	id, err := client.LatestStatusID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "555", id)

	body = `[]`
	id, err = client.LatestStatusID(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestPostStatus(t *testing.T) {
	var received map[string]interface{}
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PostStatusEndpoint, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprint(w, `{"id":"900"}`)
	})

	created, err := client.PostStatus(context.Background(), NewStatus{Status: "hello", Visibility: "private"})
	require.NoError(t, err)
	assert.Equal(t, "900", created.ID)

	assert.Equal(t, "hello", received["status"])
	assert.Equal(t, "private", received["visibility"])
	assert.Equal(t, []interface{}{}, received["media_ids"], "media_ids must be an empty array, not null")
}

func TestPostStatusRateLimited(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.PostStatus(context.Background(), NewStatus{Status: "x", Visibility: "public"})
	require.Error(t, err)
	assert.True(t, errs.IsRateLimited(err))
}

func TestPostStatusAcceptedWithoutBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "html body", body: "<html>ok</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, log := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tt.body)
			})

			created, err := client.PostStatus(context.Background(), NewStatus{Status: "hello", Visibility: "private"})
			require.NoError(t, err, "a 2xx means the post exists")
			require.NotNil(t, created)
			assert.Empty(t, created.ID)
			assert.True(t, log.HasMessage("status accepted but the response could not be decoded"))
		})
	}
}

func TestUploadMedia(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, MediaEndpoint, r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "cat.png", header.Filename)
		assert.Equal(t, "application/octet-stream", header.Header.Get("Content-Type"))
		assert.Equal(t, "image-bytes", string(data))
		assert.Equal(t, "a cat", r.FormValue("description"))

		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"id":"m-77"}`)
	})

	id, err := client.UploadMedia(context.Background(), "cat.png", []byte("image-bytes"), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "m-77", id)
}

func TestUploadMediaWithoutDescription(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		_, hasDescription := r.MultipartForm.Value["description"]
		assert.False(t, hasDescription)
		fmt.Fprint(w, `{"id":"m-1"}`)
	})

	_, err := client.UploadMedia(context.Background(), "file.jpg", []byte("x"), "")
	require.NoError(t, err)
}

func TestUploadMediaMissingID(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := client.UploadMedia(context.Background(), "file.jpg", []byte("x"), "")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestDownloadMediaFromOtherHostHasNoToken(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, "png-bytes")
	}))
	defer cdn.Close()

	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("instance should not be contacted")
	})
	// Force a distinct host so the token rule is exercised.
	client.host = "instance.invalid"

	data, err := client.DownloadMedia(context.Background(), cdn.URL+"/media/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestDownloadMediaNotFound(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.DownloadMedia(context.Background(), client.BaseURL()+"/media/gone.png")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}

func TestIDAfter(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"110", "109", true},
		{"109", "110", false},
		{"1000", "999", true},
		{"999", "1000", false},
		{"5", "5", false},
		{"1", "", true},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, IDAfter(tt.a, tt.b))
		})
	}
}

func TestMediaFilename(t *testing.T) {
	assert.Equal(t, "abc.png", MediaFilename("https://files.mastodon.social/media/original/abc.png"))
	assert.Equal(t, "abc.png", MediaFilename("https://files.mastodon.social/media/abc.png?v=2"))
	assert.Equal(t, "file.jpg", MediaFilename("https://files.mastodon.social/"))
	assert.Equal(t, "file.jpg", MediaFilename("https://files.mastodon.social"))
	assert.Equal(t, "file.jpg", MediaFilename("://bad"))
	assert.False(t, strings.Contains(MediaFilename("https://x/a/b.gif"), "/"))
}
