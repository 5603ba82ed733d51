package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/mhforecast/internal/db"
	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/synth"
)

// Load persists the dataset and forecast under runID.
func Load(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, runID uuid.UUID, seed uint64,
	ds *synth.Dataset, fc *ForecastResult, metrics *model.Metrics) (*db.LoadResult, error) {
	in := &db.LoadInput{
		RunID:         runID,
		Seed:          seed,
		Start:         ds.Params.Start,
		End:           ds.Params.End,
		Presentations: ds.Presentations,
		Daily:         ds.Daily,
		Monthly:       ds.Monthly,
		Metrics:       metrics,
	}
	if fc != nil {
		in.Forecast = fc.Rows
		in.Order = &fc.Model.Order
	}
	return db.Load(ctx, pool, log, in)
}
