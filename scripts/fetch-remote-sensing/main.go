// fetch-remote-sensing samples satellite medians at every stored profile and
// merges them into remote_sensing_data. Existing keys for other sensors are
// kept.
//
// Usage: go run ./scripts/fetch-remote-sensing -start 2023-01-01 -end 2023-12-31 [flags]
//
// Configuration: config.yaml plus the usual PG*, REDIS_* and SENSING_*
// environment variables. When REDIS_HOST is set, progress is checkpointed
// so that an interrupted run can continue with -resume.
//
// Flags:
//
//	-start    First day of the composite (YYYY-MM-DD, required)
//	-end      Day after the last day of the composite (YYYY-MM-DD, required)
//	-sensor   S1, S2, S3 or all (default: all)
//	-batch    Profiles per page (default: sensing.batch_size)
//	-scale    Sampling scale in metres (default: 10; S3 always uses 300)
//	-resume   Continue after the last checkpointed profile
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/config"
	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/logging"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
	"github.com/geosoil-inc/geosoil-engine/pkg/sensing"
	"github.com/geosoil-inc/geosoil-engine/pkg/services"
)

const cursorTTL = 7 * 24 * time.Hour

func main() {
	start := flag.String("start", "", "First day of the composite (YYYY-MM-DD)")
	end := flag.String("end", "", "Day after the last day of the composite (YYYY-MM-DD)")
	sensor := flag.String("sensor", sensing.SensorAll, "Sensor to sample: S1, S2, S3 or all")
	batch := flag.Int("batch", 0, "Profiles per page (0 uses sensing.batch_size)")
	scale := flag.Int("scale", 10, "Sampling scale in metres")
	resume := flag.Bool("resume", false, "Continue after the last checkpointed profile")
	flag.Parse()

	if *start == "" || *end == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -start YYYY-MM-DD -end YYYY-MM-DD [-sensor S1|S2|S3|all] [-batch N] [-scale M] [-resume]\n", os.Args[0])
		os.Exit(1)
	}

	opts, err := parseOptions(*start, *end, *sensor, *scale, *resume)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load("fetch-remote-sensing")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ResolveDockerHosts()
	if cfg.Sensing.BaseURL == "" {
		fmt.Fprintf(os.Stderr, "SENSING_BASE_URL is not set\n")
		os.Exit(1)
	}

	opts.BatchSize = *batch
	if opts.BatchSize <= 0 {
		opts.BatchSize = cfg.Sensing.BatchSize
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg, opts, logger)
	if summary != nil {
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enrichment failed: %v\n", err)
		os.Exit(1)
	}
}

func parseOptions(start, end, sensor string, scale int, resume bool) (services.EnrichmentOptions, error) {
	startDate, err := time.Parse(sensing.DateLayout, start)
	if err != nil {
		return services.EnrichmentOptions{}, fmt.Errorf("invalid -start %q: %w", start, err)
	}
	endDate, err := time.Parse(sensing.DateLayout, end)
	if err != nil {
		return services.EnrichmentOptions{}, fmt.Errorf("invalid -end %q: %w", end, err)
	}
	sensors, err := sensing.ParseSensors(sensor)
	if err != nil {
		return services.EnrichmentOptions{}, err
	}
	if scale <= 0 {
		return services.EnrichmentOptions{}, fmt.Errorf("-scale must be positive, got %d", scale)
	}
	return services.EnrichmentOptions{
		Sensors: sensors,
		Start:   startDate,
		End:     endDate,
		Scale:   scale,
		Resume:  resume,
	}, nil
}

func run(ctx context.Context, cfg *config.Config, opts services.EnrichmentOptions, logger *zap.Logger) (*services.EnrichmentSummary, error) {
	db, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var cursors services.CursorStore
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cursors = services.NewRedisCursorStore(redisClient, cursorTTL)
	} else if opts.Resume {
		logger.Warn("REDIS_HOST is not set; -resume starts from the first profile")
	}

	svc := services.NewEnrichmentService(
		repositories.NewProfileRepository(db),
		sensing.NewHTTPSampler(&cfg.Sensing, logger),
		cursors,
		cfg.Sensing.Concurrency,
		logger,
	)
	return svc.Run(ctx, opts)
}
