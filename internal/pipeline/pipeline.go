// Package pipeline runs the ETL job end to end: extract both sources, clean
// them and replace the destination tables.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/complaints-etl/internal/config"
	"github.com/JonMunkholm/complaints-etl/internal/extract"
	"github.com/JonMunkholm/complaints-etl/internal/frame"
	"github.com/JonMunkholm/complaints-etl/internal/load"
	"github.com/JonMunkholm/complaints-etl/internal/logging"
	"github.com/JonMunkholm/complaints-etl/internal/transform"
)

// Deps are the external resources a run uses. Nil fields are built from
// the config and released when Run returns.
type Deps struct {
	Demographics extract.Collection
	DB           load.DB
	Rand         *rand.Rand
}

// Report describes a finished run.
type Report struct {
	RunID  string
	DryRun bool

	Complaints   transform.ComplaintsReport
	Demographics transform.DemographicsReport

	// Loaded maps destination table to rows written.
	Loaded map[string]int64

	Extract   time.Duration
	Transform time.Duration
	Load      time.Duration
}

// Run executes one pass of the job.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (Report, error) {
	rep := Report{
		RunID:  uuid.NewString(),
		DryRun: cfg.Run.DryRun,
		Loaded: make(map[string]int64),
	}
	ctx = logging.WithRun(ctx, rep.RunID)
	logger := logging.FromContext(ctx)

	rng := deps.Rand
	if rng == nil {
		rng = NewRand(cfg.Run.Seed)
	}

	logger.Info("etl run started",
		slog.String("complaints", cfg.Source.ComplaintsPath),
		slog.String("collection", cfg.Mongo.Database+"."+cfg.Mongo.Collection),
		slog.Int64("seed", cfg.Run.Seed),
		slog.Bool("dry_run", cfg.Run.DryRun),
	)

	// Extract
	start := time.Now()
	complaints, err := extract.ReadCSV(cfg.Source.ComplaintsPath)
	if err != nil {
		return rep, fmt.Errorf("extract complaints: %w", err)
	}

	coll := deps.Demographics
	if coll == nil {
		c, disconnect, err := connectMongo(ctx, cfg.Mongo)
		if err != nil {
			return rep, err
		}
		defer disconnect()
		coll = c
	}

	qctx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	demographics, err := extract.ReadDemographics(qctx, coll,
		extract.Projection(cfg.Mongo.Fields, cfg.Mongo.YearFrom, cfg.Mongo.YearTo))
	cancel()
	if err != nil {
		return rep, fmt.Errorf("extract demographics: %w", err)
	}
	rep.Extract = time.Since(start)
	logging.WithFields(ctx, "stage", "extract").Info("extract finished",
		slog.Int("complaint_rows", complaints.Len()),
		slog.Int("demographic_rows", demographics.Len()),
		slog.Duration("duration", rep.Extract),
	)

	// Transform
	start = time.Now()
	if cfg.Run.StateCodes {
		// Before the rollup, so "New York" and "NY" land in one group.
		if err := normalizeStates(ctx, complaints, transform.ColState); err != nil {
			return rep, fmt.Errorf("transform complaints: %w", err)
		}
		if err := normalizeStates(ctx, demographics, transform.ColDemoState); err != nil {
			return rep, fmt.Errorf("transform demographics: %w", err)
		}
	}
	complaints, rep.Complaints, err = transform.CleanComplaints(complaints, rng)
	if err != nil {
		return rep, fmt.Errorf("transform complaints: %w", err)
	}
	demographics, rep.Demographics, err = transform.CleanDemographics(demographics)
	if err != nil {
		return rep, fmt.Errorf("transform demographics: %w", err)
	}
	rep.Transform = time.Since(start)
	logging.WithFields(ctx, "stage", "transform").Info("transform finished",
		slog.Int("complaint_rows", rep.Complaints.RowsOut),
		slog.Int("demographic_rows", rep.Demographics.RowsOut),
		slog.Any("imputed", rep.Complaints.Imputed),
		slog.Duration("duration", rep.Transform),
	)

	if cfg.Run.DryRun {
		logging.WithFields(ctx, "stage", "load").Info("dry run: skipping load")
		return rep, nil
	}

	// Load
	start = time.Now()
	db := deps.DB
	if db == nil {
		pool, closePool, err := connectPostgres(ctx, cfg.Database)
		if err != nil {
			return rep, err
		}
		defer closePool()
		db = pool
	}
	load.CheckConnectivity(ctx, db)

	tables := []struct {
		name string
		f    *frame.Frame
	}{
		{cfg.Tables.Complaints, complaints},
		{cfg.Tables.Demographics, demographics},
	}
	for _, t := range tables {
		n, err := load.ReplaceTable(ctx, db, t.name, t.f)
		if err != nil {
			return rep, fmt.Errorf("load: %w", err)
		}
		rep.Loaded[t.name] = n
	}
	rep.Load = time.Since(start)

	logging.WithFields(ctx, "stage", "load").Info("data has been successfully transferred",
		slog.Any("loaded", rep.Loaded),
		slog.Duration("duration", rep.Load),
	)
	return rep, nil
}

func normalizeStates(ctx context.Context, f *frame.Frame, col string) error {
	n, err := transform.NormalizeStates(f, col)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("state names normalized", "column", col, "cells", n)
	return nil
}

// NewRand returns the imputation source for seed. Seed 0 draws a seed from
// the runtime's entropy.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s))
}
