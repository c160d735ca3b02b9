package dynip

// EventKind identifies which Observer method produced an Event.
type EventKind int

const (
	EventIPChanged EventKind = iota + 1
	EventIPChecked
	EventIPUpdateResult
	EventNewVersion
)

func (k EventKind) String() string {
	switch k {
	case EventIPChanged:
		return "ip changed"
	case EventIPChecked:
		return "ip checked"
	case EventIPUpdateResult:
		return "ip update result"
	case EventNewVersion:
		return "new version"
	default:
		return "unknown"
	}
}

// Event is one Engine notification. Only the fields for Kind are set.
type Event struct {
	Kind          EventKind
	IP            IP
	Minutes       int
	Update        UpdateResponse
	InstallerPath string
}

// EventChannel is an Observer that forwards notifications to a channel,
// so they can be consumed on a goroutine other than the Engine's.
//
// EventIPChecked events are dropped when the buffer is full.
// All other events block the Engine until they are received.
type EventChannel struct {
	c chan Event
}

func NewEventChannel(size int) *EventChannel {
	return &EventChannel{c: make(chan Event, size)}
}

func (ec *EventChannel) Events() <-chan Event { return ec.c }

func (ec *EventChannel) OnIPChanged(ip IP) {
	ec.c <- Event{Kind: EventIPChanged, IP: ip}
}

func (ec *EventChannel) OnIPChecked(minutes int) {
	select {
	case ec.c <- Event{Kind: EventIPChecked, Minutes: minutes}:
	default:
	}
}

func (ec *EventChannel) OnIPUpdateResult(r UpdateResponse) {
	ec.c <- Event{Kind: EventIPUpdateResult, Update: r}
}

func (ec *EventChannel) OnNewVersionAvailable(path string) {
	ec.c <- Event{Kind: EventNewVersion, InstallerPath: path}
}
