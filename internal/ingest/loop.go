// Package ingest composes the log tailer, event decoder, replay assembler,
// and sinks into the running ingest loop.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ramonehamilton/arena-replay/internal/mtga/assembler"
	"github.com/ramonehamilton/arena-replay/internal/mtga/cards"
	"github.com/ramonehamilton/arena-replay/internal/mtga/event"
	"github.com/ramonehamilton/arena-replay/internal/mtga/logtail"
	"github.com/ramonehamilton/arena-replay/internal/sink"
)

// Loop drives one player log through the tailer, decoder, and assembler,
// fanning completed replays out to its sinks.
type Loop struct {
	Tailer       *logtail.Tailer
	Watcher      *logtail.RotationWatcher
	Decoder      *event.Decoder
	Assembler    *assembler.Assembler
	Sink         sink.Sink
	Errors       *ErrorStream
	PollInterval time.Duration
	Follow       bool

	limiter *rate.Limiter
}

// New builds a Loop with its dependencies wired and ready to Run. catalog
// may be nil, in which case emitted replays carry raw card ids only.
func New(playerLogPath string, rotationFallback time.Duration, pollInterval time.Duration, follow bool, catalog *cards.Catalog, s sink.Sink) *Loop {
	return &Loop{
		Tailer:       logtail.New(playerLogPath),
		Watcher:      logtail.NewRotationWatcher(playerLogPath, rotationFallback),
		Decoder:      event.NewDecoder(),
		Assembler:    assembler.NewWithCatalog(catalog),
		Sink:         s,
		Errors:       NewErrorStream(0),
		PollInterval: pollInterval,
		Follow:       follow,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Run opens the tailer and drains the log until ctx is cancelled (when
// Follow is set) or until one full read to end-of-file completes.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Tailer.Open(); err != nil {
		return fmt.Errorf("open player log: %w", err)
	}

	// Deferred calls run last-in first-out: watcherDone is closed first,
	// then wg.Wait joins the watcher goroutine.
	var wg sync.WaitGroup
	defer wg.Wait()
	watcherDone := make(chan struct{})
	defer close(watcherDone)

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Watcher.Run(watcherDone)
	}()

	if !l.Follow {
		return l.drainOnce(ctx)
	}

	ticker := time.NewTicker(l.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.Watcher.Signal():
			if err := l.Tailer.Reset(); err != nil {
				log.Printf("ingest: reset after rotation: %v", err)
			}
		case <-ticker.C:
			if err := l.processOnce(ctx); err != nil {
				log.Printf("ingest: %v", err)
			}
		}
	}
}

// drainOnce polls until the tailer reports no new lines, then returns.
func (l *Loop) drainOnce(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		lines, err := l.poll(ctx)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		l.consume(ctx, lines)
	}
}

func (l *Loop) processOnce(ctx context.Context) error {
	lines, err := l.poll(ctx)
	if err != nil {
		return err
	}
	l.consume(ctx, lines)
	return nil
}

// poll reads the next batch of lines, rate-limiting retries after a
// transient tailer error so a persistently failing read can't spin.
func (l *Loop) poll(ctx context.Context) ([]string, error) {
	lines, err := l.Tailer.Poll()
	if err != nil {
		if waitErr := l.limiter.Wait(ctx); waitErr != nil {
			return nil, waitErr
		}
		return nil, fmt.Errorf("poll player log: %w", err)
	}
	return lines, nil
}

func (l *Loop) consume(ctx context.Context, lines []string) {
	for _, line := range lines {
		ev := l.Decoder.Decode(line)
		if ev.DecodeError != "" {
			l.Errors.Push(fmt.Sprintf("decode: %s", ev.DecodeError))
		}

		completed := l.Assembler.Ingest(ev)

		for _, d := range l.Assembler.Disagreements() {
			l.Errors.Push(fmt.Sprintf(
				"controller seat disagreement for match %s: MatchStart reported seat %d, self-identified as seat %d (MatchStart wins)",
				d.MatchID, d.MatchStartSeat, d.SelfReportedSeat,
			))
		}

		if !completed {
			continue
		}

		replay, err := l.Assembler.Build()
		if err != nil {
			l.Errors.Push(fmt.Sprintf("build: %v", err))
			continue
		}

		// An interrupt must not abort a write already in flight; the
		// sink's own transaction boundary is the only cancellation point.
		if err := l.Sink.Write(context.WithoutCancel(ctx), replay); err != nil {
			msg := fmt.Sprintf("sink write failed for match %s: %v", replay.Match.ID, err)
			log.Printf("ingest: %s", msg)
			l.Errors.Push(msg)
		}
	}
}
