package kb

import (
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
)

// Sink receives committed session changes. OnEvent fires once per arena
// mutation, after the change is durable; OnInference fires once per
// completed inference run with the full report. Sinks run synchronously
// on the mutating goroutine and must not call back into the session.
type Sink interface {
	OnEvent(ontology.Event)
	OnInference(inference.Report)
}

// NoOpSink ignores everything. Embed it to implement only the callbacks
// a sink cares about.
type NoOpSink struct{}

func (NoOpSink) OnEvent(ontology.Event)       {}
func (NoOpSink) OnInference(inference.Report) {}

// MultiSink fans events out to each member in order.
type MultiSink []Sink

func (m MultiSink) OnEvent(ev ontology.Event) {
	for _, s := range m {
		s.OnEvent(ev)
	}
}

func (m MultiSink) OnInference(r inference.Report) {
	for _, s := range m {
		s.OnInference(r)
	}
}
