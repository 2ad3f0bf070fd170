package mastodon

// Account is the subset of a Mastodon account mastowatch reads
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url,omitempty"`
}

// Status is a Mastodon post as returned by the timeline endpoints
type Status struct {
	ID               string            `json:"id"`
	CreatedAt        string            `json:"created_at,omitempty"`
	Content          string            `json:"content"`
	Visibility       string            `json:"visibility"`
	InReplyToID      *string           `json:"in_reply_to_id"`
	Reblog           *Status           `json:"reblog"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
}

// IsReblog reports whether the post is a boost of someone else's post
func (s *Status) IsReblog() bool {
	return s.Reblog != nil
}

// IsReply reports whether the post answers another post
func (s *Status) IsReply() bool {
	return s.InReplyToID != nil
}

// MediaAttachment describes one attached image, video or audio file
type MediaAttachment struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	Description *string `json:"description"`
}

// AltText returns the attachment description, or "" when none was set
func (m *MediaAttachment) AltText() string {
	if m.Description == nil {
		return ""
	}
	return *m.Description
}

// UploadedMedia is the server's answer to a media upload
type UploadedMedia struct {
	ID string `json:"id"`
}

// NewStatus is the body sent when publishing a post
type NewStatus struct {
	Status     string   `json:"status"`
	Visibility string   `json:"visibility"`
	MediaIDs   []string `json:"media_ids"`
}

// FollowersPage is one page of followers plus the URL of the next page.
// Next is empty on the last page.
type FollowersPage struct {
	Accounts []Account
	Next     string
}
