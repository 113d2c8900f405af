package bot

// Result is a handler's synchronous reply, echoed back to the platform when
// the caller needs one (e.g. validation errors for a modal submission).
// A nil Result means the handler produced nothing observable.
type Result map[string]interface{}

// HandlerFunc processes a matched event. Side effects (posting messages,
// mutating invitation state) happen inside the handler; the returned Result
// is only for synchronous UI replies.
type HandlerFunc func(Event) (Result, error)

// binding pairs a named handler with the filters gating it.
type binding struct {
	name    string
	filters []Filter
	handler HandlerFunc
}

// Module groups a cohesive set of event-triggered behaviors as one dispatch
// unit. Bindings are fixed at construction time and evaluated in
// registration order; the module holds no other mutable state.
type Module struct {
	name     string
	bindings []binding
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Name returns the module's registered name.
func (m *Module) Name() string { return m.name }

// Handle registers a handler gated by zero or more filters (AND semantics).
// Registration order defines match-evaluation order.
func (m *Module) Handle(name string, h HandlerFunc, filters ...Filter) *Module {
	m.bindings = append(m.bindings, binding{name: name, filters: filters, handler: h})
	return m
}

// Dispatch offers the event to the module's bindings in registration order.
// The first binding whose filters all pass is invoked and its result
// returned; if none match, Dispatch is a no-op returning (nil, nil).
func (m *Module) Dispatch(e Event) (Result, error) {
	for _, b := range m.bindings {
		if !allMatch(b.filters, e) {
			continue
		}
		return b.handler(e)
	}
	return nil, nil
}

// Bindings returns the registered handler names in evaluation order,
// for diagnostics.
func (m *Module) Bindings() []string {
	out := make([]string, len(m.bindings))
	for i, b := range m.bindings {
		out[i] = b.name
	}
	return out
}
