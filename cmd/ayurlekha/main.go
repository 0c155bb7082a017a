package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayurlekha/processing-engine/internal/adapters/cache"
	"github.com/ayurlekha/processing-engine/internal/adapters/database"
	"github.com/ayurlekha/processing-engine/internal/adapters/events"
	"github.com/ayurlekha/processing-engine/internal/adapters/search"
	"github.com/ayurlekha/processing-engine/internal/application/services"
	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/openai"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/postgres"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/redis"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/supabase"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/typesense"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/observability"
	"github.com/ayurlekha/processing-engine/pkg/config"
	"github.com/ayurlekha/processing-engine/pkg/secrets"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

func main() {
	os.Exit(run())
}

// run wires and executes the pipeline, returning the process exit code.
// Deferred cleanup runs before main exits.
func run() int {
	var patientID string
	var aggregation string
	var format string
	var workDir string

	flag.StringVar(&patientID, "patient", "", "Single patient ID to process")
	flag.StringVar(&aggregation, "aggregation", "", "History aggregation strategy (concat|memory)")
	flag.StringVar(&format, "format", "", "Summary output format (json|markdown)")
	flag.StringVar(&workDir, "workdir", "", "Local cache directory")
	flag.Parse()

	if err := config.LoadDotEnv(".env.local", ".env"); err != nil {
		log.Error().Err(err).Msg("Failed to load .env files")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	vaultResult, vaultErr := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv(""))

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	if aggregation != "" {
		cfg.Pipeline.Aggregation = strings.ToLower(aggregation)
	}
	if format != "" {
		cfg.Pipeline.OutputFormat = config.NormalizeFormat(format)
	}
	if workDir != "" {
		cfg.Pipeline.WorkDir = workDir
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env)
	observability.SetLevel(cfg.Log.Level)

	if vaultErr != nil {
		log.Error().Err(vaultErr).Str("path", vaultResult.Path).Msg("Failed to load secrets from Vault")
		return 1
	}
	if vaultResult.Enabled {
		log.Info().
			Str("path", vaultResult.Path).
			Int("loaded", vaultResult.Loaded).
			Int("skipped", vaultResult.Skipped).
			Int("ignored", vaultResult.Ignored).
			Msg("Loaded secrets from Vault")
	}

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	// Initialize OpenTelemetry if enabled
	var metrics *observability.Metrics
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			observability.EnableOTelLogs()
			if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
				log.Warn().Err(err).Msg("Failed to start runtime metrics")
			}
			if metrics, err = observability.InitMetrics(); err != nil {
				log.Error().Err(err).Msg("Failed to initialize metrics")
				return 1
			}
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Setup DB
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer pgClient.Close()

	storage, err := supabase.NewStorageClient(&cfg.Storage)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create storage client")
		return 1
	}

	llm, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create OpenAI client")
		return 1
	}

	var memoryStore providers.MemoryStore
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Typesense")
			return 1
		}
		if err := tsClient.InitSchema(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to initialize memory collection")
			return 1
		}
		memoryStore = search.NewMemoryAdapter(tsClient)
	}

	opts := services.PipelineOptions{
		LockTTL:       cfg.Redis.LockTTL,
		EventsChannel: cfg.Redis.EventsChannel,
		Metrics:       metrics,
	}
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Redis")
			return 1
		}
		eventBus := events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
		opts.Lock = cache.NewRedisLock(redisClient)
		opts.Events = eventBus
	}

	// Setup services
	layout := services.NewCacheLayout(cfg.Pipeline.WorkDir)
	verifier := services.NewMedicineVerifier(
		search.NewDuckDuckGoAdapter(&cfg.Search),
		llm,
		cfg.Search.MaxAttempts,
		cfg.Pipeline.VerificationDelay,
		metrics,
	)
	aggregator, err := services.NewHistoryAggregator(cfg.Pipeline.Aggregation, memoryStore, cfg.Pipeline.MemoryQuery, cfg.Pipeline.MemoryTopK)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create history aggregator")
		return 1
	}
	renderer, err := services.NewSummaryRenderer(cfg.Pipeline.OutputFormat)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create summary renderer")
		return 1
	}

	svc := services.NewPipelineService(
		database.NewPatientAdapter(pgClient),
		database.NewMedicalRecordAdapter(pgClient),
		services.NewDocumentFetcher(storage, layout, cfg.Storage.ReferenceMarker),
		services.NewDocumentAnalyzer(layout, services.NewDocumentLoader(), llm, verifier),
		aggregator,
		services.NewSummarySynthesizer(llm),
		services.NewSummaryPublisher(storage, database.NewPublicationAdapter(pgClient), renderer, layout, cfg.Storage.Bucket, cfg.Storage.SummaryPrefix),
		opts,
	)

	start := time.Now()

	if patientID != "" {
		log.Info().Str("patient_id", patientID).Msg("Processing single patient")
		outcome, err := svc.RunPatient(ctx, patientID)
		if err != nil {
			log.Error().Err(err).Str("patient_id", patientID).Msg("Failed to process patient")
			return 1
		}
		log.Info().
			Str("patient_id", patientID).
			Str("state", string(outcome.State)).
			Str("remote_path", outcome.RemotePath).
			Dur("elapsed", time.Since(start)).
			Msg("Patient processed")
		if outcome.State == entities.PatientStateFailed {
			return 1
		}
		return 0
	}

	log.Info().
		Str("aggregation", cfg.Pipeline.Aggregation).
		Str("format", cfg.Pipeline.OutputFormat).
		Str("workdir", cfg.Pipeline.WorkDir).
		Msg("Starting summary run")

	exitCode := 0
	summary, err := svc.RunAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Summary run failed")
		exitCode = 1
	}

	if summary != nil {
		counts := summary.Counts()
		log.Info().
			Str("run_id", summary.RunID).
			Dur("elapsed", time.Since(start)).
			Int("patients", len(summary.Outcomes)).
			Int("published", counts[entities.PatientStatePublished]).
			Int("skipped_no_records", counts[entities.PatientStateSkippedNoRecords]).
			Int("skipped_no_analyses", counts[entities.PatientStateSkippedNoAnalyses]).
			Int("skipped_locked", counts[entities.PatientStateSkippedLocked]).
			Int("failed", counts[entities.PatientStateFailed]).
			Msg("Summary run complete")
	}
	return exitCode
}
