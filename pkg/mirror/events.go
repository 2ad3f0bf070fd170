package mirror

import "time"

// EventKind names what happened inside the loop
type EventKind string

const (
	EventStarted       EventKind = "started"
	EventCycleStarted  EventKind = "cycle_started"
	EventCycleFinished EventKind = "cycle_finished"
	EventPublished     EventKind = "published"
	EventSkipped       EventKind = "skipped"
	EventFailed        EventKind = "failed"
	EventRateLimited   EventKind = "rate_limited"
	EventMediaFailed   EventKind = "media_failed"
	EventFetchFailed   EventKind = "fetch_failed"
)

// Event is emitted to the Observer as the loop progresses
type Event struct {
	Kind      EventKind
	Time      time.Time
	StatusID  string
	Preview   string
	Reason    string
	Media     int
	Watermark string
	Err       error
	// Until is set for EventRateLimited and EventCycleFinished: the loop
	// sleeps until then
	Until time.Time
}

// Observer receives loop events. It is called synchronously and must not
// block.
type Observer func(Event)

// Stats counts outcomes since the loop started
type Stats struct {
	Cycles      int
	Published   int
	Skipped     int
	Failed      int
	RateLimited int
	MediaFailed int
}
