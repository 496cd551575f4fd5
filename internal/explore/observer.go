package explore

import (
	"github.com/copyleftdev/crfsearch/internal/logging"
)

// ProbeEvent is one encode/measure probe as seen by the observer.
type ProbeEvent struct {
	Phase      string
	Param      float64
	Size       int64
	Quality    float64
	HasQuality bool
	Compresses bool
	Cached     bool
	Note       string
}

// PhaseEvent marks a transition between search phases.
type PhaseEvent struct {
	Phase string
	Note  string
}

// Observer receives every probe and phase transition. The algorithm
// never prints; presentation is entirely the sink's concern.
type Observer interface {
	Probe(ev ProbeEvent)
	Phase(ev PhaseEvent)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Probe(ProbeEvent) {}
func (NopObserver) Phase(PhaseEvent) {}

// LogObserver forwards events to the structured logger at debug level.
type LogObserver struct {
	Logger *logging.Logger
}

func (o LogObserver) Probe(ev ProbeEvent) {
	if o.Logger == nil {
		return
	}
	fields := map[string]interface{}{
		"phase":      ev.Phase,
		"param":      ev.Param,
		"size":       ev.Size,
		"compresses": ev.Compresses,
		"cached":     ev.Cached,
	}
	if ev.HasQuality {
		fields["quality"] = ev.Quality
	}
	if ev.Note != "" {
		fields["note"] = ev.Note
	}
	o.Logger.Debug("probe", fields)
}

func (o LogObserver) Phase(ev PhaseEvent) {
	if o.Logger == nil {
		return
	}
	o.Logger.Debug("phase", map[string]interface{}{
		"phase": ev.Phase,
		"note":  ev.Note,
	})
}

// TraceRecorder accumulates events into the trace carried by Result.
type TraceRecorder struct {
	Events []ProbeEvent
	Phases []PhaseEvent
}

func (r *TraceRecorder) Probe(ev ProbeEvent) { r.Events = append(r.Events, ev) }
func (r *TraceRecorder) Phase(ev PhaseEvent) { r.Phases = append(r.Phases, ev) }

// recorderIn digs a TraceRecorder out of a possibly fanned-out
// observer, so the trace survives composition with logging sinks.
func recorderIn(o Observer) *TraceRecorder {
	switch v := o.(type) {
	case *TraceRecorder:
		return v
	case MultiObserver:
		for _, sub := range v {
			if r := recorderIn(sub); r != nil {
				return r
			}
		}
	}
	return nil
}

// MultiObserver fans events out to several sinks.
type MultiObserver []Observer

func (m MultiObserver) Probe(ev ProbeEvent) {
	for _, o := range m {
		o.Probe(ev)
	}
}

func (m MultiObserver) Phase(ev PhaseEvent) {
	for _, o := range m {
		o.Phase(ev)
	}
}
