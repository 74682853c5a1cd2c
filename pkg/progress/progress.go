package progress

import "fmt"

// The overall percentage range is split into two fixed bands: download owns
// [0, DownloadCeiling], extraction owns the rest. A run that skips
// extraction still finishes at Done.
const (
	DownloadCeiling = 85
	Done            = 100
)

// Event is one progress update: an integer percentage in [0,100] and a short
// status line. Events flow over a side channel and never into results.
type Event struct {
	Percent int
	Status  string
}

// Sink receives progress events. The pipeline emits from a single goroutine,
// implementations only need to tolerate sequential calls.
type Sink interface {
	Progress(e Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Progress(e Event) {
	f(e)
}

// Discard drops all events.
var Discard Sink = SinkFunc(func(Event) {})

// Tracker scales raw completion ratios into a band of the percentage range
// and guarantees the reported percentage never decreases. One tracker lives
// for the duration of one pipeline run.
type Tracker struct {
	sink Sink
	last int
}

func NewTracker(sink Sink) *Tracker {
	if sink == nil {
		sink = Discard
	}

	return &Tracker{sink: sink}
}

// Set reports percent with status. Values clamp into [0,100] and never move
// backwards. Every call emits an event even when the percentage repeats, so
// status text always reaches the sink.
func (t *Tracker) Set(percent int, status string) {
	if percent < 0 {
		percent = 0
	}
	if percent > Done {
		percent = Done
	}
	if percent < t.last {
		percent = t.last
	}

	t.last = percent
	t.sink.Progress(Event{Percent: percent, Status: status})
}

// SetRatio reports done of total scaled into the band [lo, hi]. The ratio is
// capped at one so a lying total can never push the percentage past the
// band's ceiling. A non-positive total means the amount of work is unknown
// and only the status text is updated.
func (t *Tracker) SetRatio(lo, hi int, done, total int64, status string) {
	if total <= 0 {
		t.Status(status)
		return
	}
	if done > total {
		done = total
	}

	span := int64(hi - lo)
	t.Set(lo+int(done*span/total), status)
}

// Status re-emits the current percentage with new status text.
func (t *Tracker) Status(status string) {
	t.sink.Progress(Event{Percent: t.last, Status: status})
}

// Last returns the most recently reported percentage.
func (t *Tracker) Last() int {
	return t.last
}

// FormatBytes renders a byte count in human readable form.
func FormatBytes(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
