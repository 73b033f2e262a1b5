package domain

import "fmt"

type EventKind int

const (
	EventPrepared EventKind = iota
	EventError
	EventInfo
	EventCompletion
	EventBufferingUpdate
	EventSeekComplete
)

func (k EventKind) String() string {
	switch k {
	case EventPrepared:
		return "prepared"
	case EventError:
		return "error"
	case EventInfo:
		return "info"
	case EventCompletion:
		return "completion"
	case EventBufferingUpdate:
		return "buffering"
	case EventSeekComplete:
		return "seek-complete"
	default:
		return "unknown"
	}
}

// Error codes carried in Event.What / Event.Extra.
const (
	MediaErrorUnknown     = 1
	MediaErrorServerDied  = 100
	MediaErrorIO          = -1004
	MediaErrorMalformed   = -1007
	MediaErrorUnsupported = -1010
	MediaErrorTimedOut    = -110
)

// Info codes carried in Event.What.
const (
	InfoUnknown             = 1
	InfoVideoRenderingStart = 3
	InfoBufferingStart      = 701
	InfoBufferingEnd        = 702
	InfoNotSeekable         = 801
	InfoMetadataUpdate      = 802
)

// Event is a single engine callback. What and Extra are set for
// EventError and EventInfo, Percent for EventBufferingUpdate.
type Event struct {
	Kind    EventKind
	What    int
	Extra   int
	Percent int
}

func PreparedEvent() Event { return Event{Kind: EventPrepared} }

func CompletionEvent() Event { return Event{Kind: EventCompletion} }

func SeekCompleteEvent() Event { return Event{Kind: EventSeekComplete} }

func ErrorEvent(what, extra int) Event { return Event{Kind: EventError, What: what, Extra: extra} }

func InfoEvent(what, extra int) Event { return Event{Kind: EventInfo, What: what, Extra: extra} }

func BufferingEvent(percent int) Event { return Event{Kind: EventBufferingUpdate, Percent: percent} }

func (e Event) String() string {
	switch e.Kind {
	case EventError, EventInfo:
		return fmt.Sprintf("%s(what=%d, extra=%d)", e.Kind, e.What, e.Extra)
	case EventBufferingUpdate:
		return fmt.Sprintf("%s(%d%%)", e.Kind, e.Percent)
	default:
		return e.Kind.String()
	}
}
