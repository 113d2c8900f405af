package bot

import (
	"errors"
	"fmt"

	"github.com/penny-university/pennybot/pkg/logger"
)

// Bot is the top-level router. It owns an ordered list of modules, wired
// once at process start and read-only afterwards.
type Bot struct {
	modules []*Module
}

// New creates a router over the given modules. The slice order is the
// dispatch order.
func New(modules ...*Module) *Bot {
	for _, m := range modules {
		logger.InfoCF("bot", "Module registered", map[string]interface{}{
			"module":   m.Name(),
			"bindings": m.Bindings(),
		})
	}
	return &Bot{modules: modules}
}

// Dispatch fans the event out to every module in order. Every module gets
// the event (their side effects always run); the first non-nil Result is
// kept and later results are discarded. Handler errors are collected and
// joined; a failing module never stops the fan-out.
//
// A (nil, nil) return means no module produced a result and the caller
// should treat the event as fire-and-forget.
func (b *Bot) Dispatch(e Event) (Result, error) {
	var result Result
	var errs []error

	for _, m := range b.modules {
		res, err := m.Dispatch(e)
		if err != nil {
			logger.ErrorCF("bot", "Module dispatch failed", map[string]interface{}{
				"module": m.Name(),
				"error":  err.Error(),
			})
			errs = append(errs, fmt.Errorf("module %s: %w", m.Name(), err))
			continue
		}
		if res != nil && result == nil {
			result = res
		}
	}

	return result, errors.Join(errs...)
}

// Modules returns the registered module names in dispatch order.
func (b *Bot) Modules() []string {
	out := make([]string, len(b.modules))
	for i, m := range b.modules {
		out[i] = m.Name()
	}
	return out
}
