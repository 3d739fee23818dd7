package report

import "github.com/lance13c/stateshot/internal/scheduler"

// Multi fans results out to several sinks in order. Nil sinks are dropped.
func Multi(sinks ...scheduler.Sink) scheduler.Sink {
	var live []scheduler.Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return multi(live)
}

type multi []scheduler.Sink

func (m multi) Record(r scheduler.Result) {
	for _, s := range m {
		s.Record(r)
	}
}
