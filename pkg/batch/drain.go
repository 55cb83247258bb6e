package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// Progress counts what a Drain call saw.
type Progress struct {
	Batches int
	Skipped int
	Queries int
}

// Drain pulls every batch from src and hands it to fn. An *EmptyBatchError
// stops the drain under core.PolicyFail and is logged and counted under
// core.PolicySkip. Any other error, including one from fn, stops the drain.
func Drain(ctx context.Context, src Source, onEmpty core.Policy, logger *slog.Logger, fn func(*Batch) error) (Progress, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var p Progress
	for {
		b, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return p, nil
		}
		var emptyErr *EmptyBatchError
		if errors.As(err, &emptyErr) && onEmpty.Skips() {
			logger.Warn("skipping empty batch", "window", emptyErr.Window.String(), "remaining", src.Len())
			batchesSkipped.Inc()
			p.Skipped++
			continue
		}
		if err != nil {
			return p, err
		}

		if err := fn(b); err != nil {
			return p, err
		}
		p.Batches++
		p.Queries += b.Len()
	}
}
