package bot

import (
	"fmt"
	"regexp"
)

// Predicate decides whether a handler should run for an event. Predicates
// must be pure; a missing key reads as a zero value and evaluates to false.
type Predicate func(Event) bool

// Filter is a named predicate. The name survives parameterization
// (e.g. "type_is(message)") so dispatch decisions stay diagnosable in logs.
type Filter struct {
	Name string
	Test Predicate
}

// NewFilter builds a named filter from a predicate.
func NewFilter(name string, test Predicate) Filter {
	return Filter{Name: name, Test: test}
}

// Matches evaluates the filter. A nil predicate never matches.
func (f Filter) Matches(e Event) bool {
	return f.Test != nil && f.Test(e)
}

// And combines two filters; both must pass.
func (f Filter) And(g Filter) Filter {
	return Filter{
		Name: fmt.Sprintf("%s AND %s", f.Name, g.Name),
		Test: func(e Event) bool { return f.Matches(e) && g.Matches(e) },
	}
}

// Or combines two filters; either may pass.
func (f Filter) Or(g Filter) Filter {
	return Filter{
		Name: fmt.Sprintf("%s OR %s", f.Name, g.Name),
		Test: func(e Event) bool { return f.Matches(e) || g.Matches(e) },
	}
}

// Wrap decorates a handler so it only runs when the filter matches.
// On no-match the decorated handler is a no-op returning an absent result.
func (f Filter) Wrap(h HandlerFunc) HandlerFunc {
	return func(e Event) (Result, error) {
		if !f.Matches(e) {
			return nil, nil
		}
		return h(e)
	}
}

// allMatch reports whether every filter passes. An empty set always matches.
func allMatch(filters []Filter, e Event) bool {
	for _, f := range filters {
		if !f.Matches(e) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Filter factories: each call bakes its configuration into the name
// ---------------------------------------------------------------------------

// TypeIs matches events whose "type" field equals t
// (message, block_actions, view_submission, ...).
func TypeIs(t string) Filter {
	return NewFilter(fmt.Sprintf("type_is(%s)", t), func(e Event) bool {
		return e.String("type") == t
	})
}

// SubtypeIs matches events whose "subtype" field equals st.
func SubtypeIs(st string) Filter {
	return NewFilter(fmt.Sprintf("subtype_is(%s)", st), func(e Event) bool {
		return e.String("subtype") == st
	})
}

// NotSubtype matches events that do not carry the given subtype.
func NotSubtype(st string) Filter {
	return NewFilter(fmt.Sprintf("not_subtype(%s)", st), func(e Event) bool {
		return e.String("subtype") != st
	})
}

// ActionIDIs matches block action payloads whose triggered action has the
// given action_id.
func ActionIDIs(id string) Filter {
	return NewFilter(fmt.Sprintf("action_id_is(%s)", id), func(e Event) bool {
		return e.Action().String("action_id") == id
	})
}

// CallbackIDIs matches view payloads whose view callback_id equals id.
func CallbackIDIs(id string) Filter {
	return NewFilter(fmt.Sprintf("callback_id_is(%s)", id), func(e Event) bool {
		return e.Map("view").String("callback_id") == id
	})
}

// InView matches payloads that carry a view (modal) context.
func InView() Filter {
	return NewFilter("in_view", func(e Event) bool {
		return e.Map("view").String("id") != ""
	})
}

// HasField matches events that carry a key at all, whatever its value.
func HasField(key string) Filter {
	return NewFilter(fmt.Sprintf("has_field(%s)", key), func(e Event) bool {
		return e.Has(key)
	})
}

// TextMatches matches message events whose text matches the pattern.
func TextMatches(pattern string) Filter {
	re := regexp.MustCompile(pattern)
	return NewFilter(fmt.Sprintf("text_matches(%s)", pattern), func(e Event) bool {
		text := e.String("text")
		return text != "" && re.MatchString(text)
	})
}

// ChannelIs matches events addressed to a specific channel.
func ChannelIs(channel string) Filter {
	return NewFilter(fmt.Sprintf("channel_is(%s)", channel), func(e Event) bool {
		return e.String("channel") == channel
	})
}
