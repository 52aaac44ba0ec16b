package mirror

import (
	"context"

	"leandash/internal/core"
)

// Ports for outbound mirror adapters. The dashboard stays usable when no
// mirror is configured; the worker just has nowhere to write.
type (
	// EntryWriter appends one chart observation to the mirror and returns
	// an adapter-specific reference to the written row.
	EntryWriter interface {
		Append(ctx context.Context, chartName string, horizon core.Horizon, e core.ChartEntry) (rowRef string, err error)
	}
)
