// Package lifecycle bridges mapper hook events to the aretw0/lifecycle
// supervision runtime.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/strata/pkg/core"
)

type hookSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that re-emits fired hooks.
// events is usually the channel returned by Mapper.Events.
func NewSource(events <-chan core.Event) lifecycle.Source {
	return &hookSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *hookSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start pumps events until ctx is done or the upstream channel closes.
// The output channel is closed on exit.
func (s *hookSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
