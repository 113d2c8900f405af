// Package bot implements pennybot's event-dispatch core: an immutable Event
// wrapper over inbound webhook payloads, named predicate filters, modules
// that bind filters to handlers, and the router that fans one event out to
// every module.
package bot

// Event is an immutable wrapper around one inbound payload: a message, a
// block action, a view submission, or a slash command. Filters and handlers
// read through its accessors and never touch the raw transport payload.
//
// There is no validation at construction; a malformed payload surfaces as a
// zero value at the point of use, which filters treat as no-match.
type Event struct {
	data map[string]interface{}
}

// NewEvent wraps a decoded payload. The caller must not mutate data after
// handing it over.
func NewEvent(data map[string]interface{}) Event {
	return Event{data: data}
}

// Get returns the raw value for a key and whether it was present.
func (e Event) Get(key string) (interface{}, bool) {
	v, ok := e.data[key]
	return v, ok
}

// Has reports whether a key is present.
func (e Event) Has(key string) bool {
	_, ok := e.data[key]
	return ok
}

// String returns the string value for a key, or "" if absent or not a string.
func (e Event) String(key string) string {
	s, _ := e.data[key].(string)
	return s
}

// Map returns the nested event under a key. Absent or non-map values yield
// an empty Event, so chained lookups degrade to zero values.
func (e Event) Map(key string) Event {
	m, _ := e.data[key].(map[string]interface{})
	return Event{data: m}
}

// List returns the nested events under a key holding a sequence. Non-map
// elements are skipped.
func (e Event) List(key string) []Event {
	raw, _ := e.data[key].([]interface{})
	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, Event{data: m})
		}
	}
	return out
}

// Strings returns the string elements under a key holding a sequence
// (e.g. a multi-select's selected IDs). Non-string elements are skipped.
func (e Event) Strings(key string) []string {
	raw, _ := e.data[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Action returns the first element of the payload's "actions" sequence.
// Block action payloads carry exactly one triggered action there.
func (e Event) Action() Event {
	actions := e.List("actions")
	if len(actions) == 0 {
		return Event{}
	}
	return actions[0]
}
