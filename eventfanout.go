package cmdbot

import "pkt.systems/cmdbot/schema"

// EventSink receives dispatch and status transition notifications.
type EventSink interface {
	OnExec(event schema.ExecEvent)
	OnTransition(event schema.TransitionEvent)
}

type eventFanout struct {
	sinks []EventSink
}

func (f eventFanout) OnExec(event schema.ExecEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnExec(event)
	}
}

func (f eventFanout) OnTransition(event schema.TransitionEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTransition(event)
	}
}

func fanout(sinks []EventSink) EventSink {
	live := make([]EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			live = append(live, sink)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	default:
		return eventFanout{sinks: live}
	}
}
