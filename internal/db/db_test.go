package db_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/mhforecast/internal/db"
	"github.com/gyeh/mhforecast/internal/logging"
	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/synth"
)

const (
	testPort     = 15433
	testDB       = "mhtest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	if os.Getenv("MHFORECAST_PG_TESTS") == "" {
		fmt.Fprintln(os.Stderr, "SKIP: set MHFORECAST_PG_TESTS=1 to run embedded postgres tests")
		os.Exit(0)
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS mh CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := db.ApplyMigrations(ctx, pool, logging.Setup("text", "warn")); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	pool := setupDB(t)
	if err := db.ApplyMigrations(context.Background(), pool, logging.Setup("text", "warn")); err != nil {
		t.Fatalf("second ApplyMigrations: %v", err)
	}
}

func TestLoad(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)
	ds, err := synth.Generate(synth.DefaultParams(start, end), synth.NewSource(7))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	fc := []model.ForecastRow{
		{Date: end.AddDate(0, 0, 1), PredictedValue: 10, LowerBound: 5, UpperBound: 15, Order: model.Order{P: 1, D: 1, Q: 1}},
	}

	in := &db.LoadInput{
		RunID:         uuid.New(),
		Seed:          7,
		Start:         start,
		End:           end,
		Presentations: ds.Presentations,
		Daily:         ds.Daily,
		Monthly:       ds.Monthly,
		Forecast:      fc,
		Order:         &fc[0].Order,
		Metrics:       &model.Metrics{MAPE: 12.5, R2: 0.4, HoldoutDays: 30},
	}
	res, err := db.Load(ctx, pool, logging.Setup("text", "warn"), in)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	counts, err := db.CountRows(ctx, pool, in.RunID)
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if counts.Presentations != int64(len(ds.Presentations)) {
		t.Errorf("presentations = %d, want %d", counts.Presentations, len(ds.Presentations))
	}
	if counts.Daily != 59 {
		t.Errorf("daily = %d, want 59", counts.Daily)
	}
	if counts.Monthly != 2 {
		t.Errorf("monthly = %d, want 2", counts.Monthly)
	}
	if *counts != res.Rows {
		t.Errorf("counts %+v differ from load result %+v", *counts, res.Rows)
	}

	var status, order string
	var mape float64
	err = pool.QueryRow(ctx, "SELECT status, model_order, mape FROM mh.runs WHERE run_id = $1", in.RunID).
		Scan(&status, &order, &mape)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if status != db.StatusLoaded || order != "(1,1,1)" || mape != 12.5 {
		t.Errorf("run row = %q %q %v", status, order, mape)
	}

	var nullGrowth int
	pool.QueryRow(ctx, "SELECT count(*) FROM mh.monthly_summary WHERE run_id = $1 AND growth_rate IS NULL", in.RunID).Scan(&nullGrowth)
	if nullGrowth != 1 {
		t.Errorf("expected exactly one NULL growth_rate, got %d", nullGrowth)
	}

	if err := db.DeleteRun(ctx, pool, in.RunID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	counts, _ = db.CountRows(ctx, pool, in.RunID)
	if counts.Presentations != 0 || counts.Daily != 0 {
		t.Errorf("rows remain after delete: %+v", counts)
	}
}

func TestLoad_DuplicateDailyFails(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	d := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	in := &db.LoadInput{
		RunID: uuid.New(),
		Start: d,
		End:   d,
		Daily: []model.DailySummary{{Date: d, TotalPresentations: 1}, {Date: d, TotalPresentations: 2}},
	}
	if _, err := db.Load(ctx, pool, logging.Setup("text", "warn"), in); err == nil {
		t.Fatal("expected primary key violation")
	}

	var status string
	pool.QueryRow(ctx, "SELECT status FROM mh.runs WHERE run_id = $1", in.RunID).Scan(&status)
	if status != db.StatusFailed {
		t.Errorf("status = %q, want %q", status, db.StatusFailed)
	}
}

func TestRegisterRun_StartsLoading(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	runID := uuid.New()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := db.RegisterRun(ctx, pool, runID, 3, start, start); err != nil {
		t.Fatalf("RegisterRun: %v", err)
	}
	if err := db.RegisterRun(ctx, pool, runID, 3, start, start); err != nil {
		t.Fatalf("second RegisterRun: %v", err)
	}
	var status string
	if err := pool.QueryRow(ctx, "SELECT status FROM mh.runs WHERE run_id = $1", runID).Scan(&status); err != nil {
		t.Fatalf("query: %v", err)
	}
	if status != db.StatusLoading {
		t.Errorf("status = %q, want %q", status, db.StatusLoading)
	}
}
