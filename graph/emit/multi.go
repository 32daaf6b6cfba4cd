package emit

// MultiEmitter fans each event out to several emitters in order.
//
// Example:
//
//	emitter := emit.NewMultiEmitter(
//	    emit.NewLogEmitter(os.Stderr, false),
//	    emit.NewOTelEmitter(otel.Tracer("draftloop")),
//	)
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter returns an emitter forwarding to every non-nil emitter.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit forwards event to each wrapped emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

// Len returns the number of wrapped emitters.
func (m *MultiEmitter) Len() int {
	return len(m.emitters)
}
