package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventAccessors(t *testing.T) {
	e := NewEvent(map[string]interface{}{
		"type": "block_actions",
		"user": map[string]interface{}{"id": "U123"},
		"actions": []interface{}{
			map[string]interface{}{"action_id": "penny_chat_edit", "value": "{}"},
		},
		"ids": []interface{}{"U1", "U2", 7},
	})

	assert.Equal(t, "block_actions", e.String("type"))
	assert.Equal(t, "U123", e.Map("user").String("id"))
	assert.Equal(t, "penny_chat_edit", e.Action().String("action_id"))
	assert.Equal(t, []string{"U1", "U2"}, e.Strings("ids"))

	// missing keys degrade to zero values, never panic
	assert.Equal(t, "", e.String("missing"))
	assert.Equal(t, "", e.Map("missing").Map("deeper").String("nope"))
	assert.Empty(t, e.List("missing"))
	assert.False(t, e.Has("missing"))
}

func TestFilterWrap(t *testing.T) {
	var calls []Event
	handler := func(e Event) (Result, error) {
		calls = append(calls, e)
		return Result{"ok": true}, nil
	}

	wrapped := NewFilter("call_me", func(e Event) bool {
		v, _ := e.Get("call_me")
		b, _ := v.(bool)
		return b
	}).Wrap(handler)

	res, err := wrapped(NewEvent(map[string]interface{}{"call_me": false}))
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, calls, "handler must not run when the predicate is false")

	res, err = wrapped(NewEvent(map[string]interface{}{"call_me": true}))
	require.NoError(t, err)
	assert.Equal(t, Result{"ok": true}, res)
	assert.Len(t, calls, 1, "handler runs exactly once when the predicate passes")
}

func TestFilterFactoryIndependence(t *testing.T) {
	// Two differently-configured filters from the same factory must not
	// share state, and the configuration must show up in the name.
	green := TypeIs("green")
	red := TypeIs("red")

	assert.Equal(t, "type_is(green)", green.Name)
	assert.Equal(t, "type_is(red)", red.Name)

	e := NewEvent(map[string]interface{}{"type": "green"})
	assert.True(t, green.Matches(e))
	assert.False(t, red.Matches(e))
}

func TestFilterCombinators(t *testing.T) {
	isMsg := TypeIs("message")
	hasText := TextMatches("hello")

	e := NewEvent(map[string]interface{}{"type": "message", "text": "well hello there"})
	assert.True(t, isMsg.And(hasText).Matches(e))
	assert.Equal(t, "type_is(message) AND text_matches(hello)", isMsg.And(hasText).Name)

	other := NewEvent(map[string]interface{}{"type": "message"})
	assert.False(t, isMsg.And(hasText).Matches(other))
	assert.True(t, isMsg.Or(hasText).Matches(other))
}

func TestFilterMissingKeyIsNoMatch(t *testing.T) {
	empty := NewEvent(map[string]interface{}{})

	for _, f := range []Filter{
		TypeIs("message"),
		SubtypeIs("bot_message"),
		ActionIDIs("penny_chat_share"),
		CallbackIDIs("penny_chat_share"),
		InView(),
		TextMatches("x"),
		ChannelIs("C1"),
	} {
		assert.False(t, f.Matches(empty), "filter %s must treat missing keys as no-match", f.Name)
	}
	// NotSubtype is the exception: absence of the subtype is a match.
	assert.True(t, NotSubtype("bot_message").Matches(empty))
}

func TestModuleDispatchOrder(t *testing.T) {
	var ran []string
	record := func(name string, res Result) HandlerFunc {
		return func(Event) (Result, error) {
			ran = append(ran, name)
			return res, nil
		}
	}

	m := NewModule("test").
		Handle("first", record("first", nil), TypeIs("a")).
		Handle("second", record("second", Result{"from": "second"}), TypeIs("b")).
		Handle("third", record("third", Result{"from": "third"}), TypeIs("b"))

	// Only the first matching binding runs.
	res, err := m.Dispatch(NewEvent(map[string]interface{}{"type": "b"}))
	require.NoError(t, err)
	assert.Equal(t, Result{"from": "second"}, res)
	assert.Equal(t, []string{"second"}, ran)
}

func TestModuleNoMatchIsNoOp(t *testing.T) {
	called := false
	m := NewModule("test").
		Handle("never", func(Event) (Result, error) {
			called = true
			return Result{}, nil
		}, TypeIs("something_else"))

	res, err := m.Dispatch(NewEvent(map[string]interface{}{"type": "message"}))
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.False(t, called)
}

func TestBotFanOut(t *testing.T) {
	var ran []string
	module := func(name string, res Result) *Module {
		return NewModule(name).Handle(name, func(Event) (Result, error) {
			ran = append(ran, name)
			return res, nil
		})
	}

	// Only m2 produces a result; m1 and m3 still run for their side effects.
	b := New(
		module("m1", nil),
		module("m2", Result{"from": "m2"}),
		module("m3", Result{"from": "m3"}),
	)

	res, err := b.Dispatch(NewEvent(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, Result{"from": "m2"}, res)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ran, "every module must be offered the event")
}

func TestBotCollectsErrorsWithoutStopping(t *testing.T) {
	boom := errors.New("boom")
	var ran []string

	failing := NewModule("failing").Handle("fail", func(Event) (Result, error) {
		ran = append(ran, "failing")
		return nil, boom
	})
	ok := NewModule("ok").Handle("ok", func(Event) (Result, error) {
		ran = append(ran, "ok")
		return Result{"from": "ok"}, nil
	})

	res, err := New(failing, ok).Dispatch(NewEvent(map[string]interface{}{}))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Result{"from": "ok"}, res, "a failing module must not eat later results")
	assert.Equal(t, []string{"failing", "ok"}, ran)
}

func TestBotNoResult(t *testing.T) {
	res, err := New(NewModule("empty")).Dispatch(NewEvent(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Nil(t, res)
}
