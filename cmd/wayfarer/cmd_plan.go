/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/wayfarer/internal/catalog"
	"github.com/friendsincode/wayfarer/internal/db"
	"github.com/friendsincode/wayfarer/internal/filler"
	"github.com/friendsincode/wayfarer/internal/logging"
	"github.com/friendsincode/wayfarer/internal/policy"
	"github.com/friendsincode/wayfarer/internal/scheduler"
	"github.com/friendsincode/wayfarer/internal/trips"
	"github.com/friendsincode/wayfarer/internal/weights"
)

const offlineUser = "local"

type planOptions struct {
	requestPath string
	catalogPath string
	weightsPath string
	policyPath  string
	title       string
	basic       bool
	depth       int
	branch      int
	verbose     bool
}

var planOpts planOptions

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan an itinerary offline from JSON files",
	Long: `Build an itinerary without a server or database. The catalog file holds
candidate places (a JSON array, or {"places": [...]}); the request file holds
the plan request. The result is written to stdout as JSON and logs go to
stderr.

Examples:
  wayfarer plan --catalog seoul.json --request trip.json
  wayfarer plan --catalog seoul.json --request trip.json --basic
  wayfarer plan --catalog seoul.json --request trip.json --weights weights.yaml --depth 2
`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOpts.requestPath, "request", "r", "", "Plan request JSON file (required)")
	planCmd.Flags().StringVarP(&planOpts.catalogPath, "catalog", "c", "", "Candidate places JSON file (required)")
	planCmd.Flags().StringVarP(&planOpts.weightsPath, "weights", "w", "", "Weight vector YAML or JSON file")
	planCmd.Flags().StringVar(&planOpts.policyPath, "policy", "", "Focus-mode policy YAML file")
	planCmd.Flags().StringVarP(&planOpts.title, "title", "t", "offline", "Trip title")
	planCmd.Flags().BoolVar(&planOpts.basic, "basic", false, "Only build the skeleton, no fill")
	planCmd.Flags().IntVar(&planOpts.depth, "depth", 0, "Lookahead depth (0 = default)")
	planCmd.Flags().IntVar(&planOpts.branch, "branch-factor", 0, "Candidates considered per slot (0 = default)")
	planCmd.Flags().BoolVarP(&planOpts.verbose, "verbose", "v", false, "Debug logging")
	_ = planCmd.MarkFlagRequired("request")
	_ = planCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	env := "production"
	if planOpts.verbose {
		env = "development"
	}
	log := logging.SetupWithWriter(env, cmd.ErrOrStderr())

	res, err := planOffline(cmd.Context(), planOpts, log)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// planOffline runs one plan against an in-memory database seeded from files.
func planOffline(ctx context.Context, opts planOptions, log zerolog.Logger) (*scheduler.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var req scheduler.PlanRequest
	if err := readJSON(opts.requestPath, &req); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	batch, err := readCatalog(opts.catalogPath)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	pol := policy.Default()
	if opts.policyPath != "" {
		if pol, err = policy.LoadFile(opts.policyPath); err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close(gdb)
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	svcOpts := scheduler.DefaultOptions()
	svcOpts.RunTimeout = 0
	svc := scheduler.New(
		catalog.NewStore(gdb, log),
		weights.NewStore(gdb, log),
		trips.NewRepository(gdb, log),
		filler.New(pol, log),
		svcOpts,
		log,
	)

	if opts.weightsPath != "" {
		v, err := readWeights(opts.weightsPath)
		if err != nil {
			return nil, fmt.Errorf("read weights: %w", err)
		}
		if err := svc.SaveWeights(ctx, offlineUser, v); err != nil {
			return nil, err
		}
	}

	n, err := svc.IngestPlaces(ctx, offlineUser, opts.title, batch)
	if err != nil {
		return nil, fmt.Errorf("ingest catalog: %w", err)
	}
	log.Info().Int("places", n).Str("title", opts.title).Msg("catalog loaded")

	req.UserID = offlineUser
	req.Title = opts.title
	if opts.depth > 0 {
		req.Depth = opts.depth
	}
	if opts.branch > 0 {
		req.BranchFactor = opts.branch
	}

	if opts.basic {
		return svc.PrepareBasic(ctx, req)
	}
	return svc.Prepare(ctx, req)
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// readCatalog accepts a bare array of places or {"places": [...]}.
func readCatalog(path string) ([]catalog.Ingest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if data[0] == '[' {
		var batch []catalog.Ingest
		err := json.Unmarshal(data, &batch)
		return batch, err
	}
	var wrapped struct {
		Places []catalog.Ingest `json:"places"`
	}
	err = json.Unmarshal(data, &wrapped)
	return wrapped.Places, err
}

// readWeights parses YAML, which also covers JSON input.
func readWeights(path string) (weights.Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return weights.Vector{}, err
	}
	v := weights.Default()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return weights.Vector{}, err
	}
	return v, nil
}
