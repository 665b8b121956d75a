// Package sink defines the destinations an ingested replay can be written
// to, and the concrete directory and relational implementations.
package sink

import (
	"context"
	"errors"

	"github.com/ramonehamilton/arena-replay/internal/mtga/assembler"
)

// Sink persists one completed match replay. How a repeat write for the
// same match id is handled is up to each implementation: DirectorySink
// overwrites the existing file, RelationalSink rejects it and leaves the
// stored rows untouched.
type Sink interface {
	Write(ctx context.Context, replay *assembler.MatchReplay) error
}

// Multi fans a single replay out to every sink in registration order. A
// failure in one sink never skips the rest; every configured sink always
// gets a chance to write.
type Multi []Sink

// Write satisfies Sink by writing to every configured sink in order,
// joining any failures into a single error.
func (m Multi) Write(ctx context.Context, replay *assembler.MatchReplay) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, replay); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
