package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsSQS "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lockwhz/iac-analytics-service/config"
	"github.com/lockwhz/iac-analytics-service/internal/db"
	"github.com/lockwhz/iac-analytics-service/internal/git"
	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/internal/rules"
	"github.com/lockwhz/iac-analytics-service/internal/scan"
	"github.com/lockwhz/iac-analytics-service/internal/secrets"
	"github.com/lockwhz/iac-analytics-service/internal/services"
	"github.com/lockwhz/iac-analytics-service/internal/telemetry"
	"github.com/lockwhz/iac-analytics-service/internal/vault"
	"github.com/lockwhz/iac-analytics-service/models"
)

var (
	numWorkers     = 5 // Consumer workers.
	dbPasswordName = "IAC_DB_PASSWORD"
)

func main() {
	cfg := config.Load()

	logger.LogPath = cfg.LogPath
	if err := logger.Init(); err != nil {
		logger.Log.Fatalf("failed to initialise logger: %v", err)
	}
	defer logger.Sync()
	defer logger.Trace("main", time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publishers []telemetry.Publisher

	if cfg.EnableDB {
		if cfg.EnableSecrets {
			var secretsManager secrets.SecretsManager = &secrets.DefaultSecretsManager{}
			secret, err := secretsManager.GetSecret(dbPasswordName)
			if err != nil {
				logger.Log.Fatalf("failed to read database secret: %v", err)
			}
			cfg.PGPassword = secret
		}
		store, err := db.Connect(ctx, cfg.PostgresConnString())
		if err != nil {
			logger.Log.Fatalf("failed to connect to database: %v", err)
		}
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			logger.Log.Fatalf("failed to create analytics table: %v", err)
		}
		publishers = append(publishers, store)
	}

	var sqsClient *awsSQS.Client
	if cfg.EnableSQS || cfg.EnableAnalyticsQ {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Log.Fatalf("failed to load AWS config: %v", err)
		}
		sqsClient = awsSQS.NewFromConfig(awsCfg)
	}
	if cfg.EnableAnalyticsQ {
		publishers = append(publishers, &telemetry.SQSPublisher{Client: sqsClient, QueueURL: cfg.AnalyticsQueueURL})
	}

	if cfg.EnableMetrics {
		publishers = append(publishers, telemetry.NewGaugeSink(prometheus.DefaultRegisterer))
		go serveMetrics(cfg.MetricsAddr)
	}

	var scanner scan.Scanner = scan.FileScanner{}
	if cfg.EnableEngine {
		scanner = &scan.EngineScanner{EnginePath: cfg.EnginePath}
	}

	pipeline := &services.Pipeline{
		Scanner:       scanner,
		Rules:         rules.NewScanner(cfg.RulesMaxDepth),
		BundleRepo:    cfg.PolicyBundleRepo,
		BundleDir:     cfg.PolicyBundleDir,
		CleanupBundle: cfg.CleanupBundle,
		Publishers:    publishers,
	}
	if cfg.EnableBundleFetch {
		var vaultClient vault.VaultClient = &vault.NoOpVaultClient{}
		if cfg.EnableVault {
			vaultClient = &vault.DefaultVaultClient{}
		}
		pipeline.Bundle = &git.BundleFetcher{Vault: vaultClient}
	}

	if !cfg.EnableSQS {
		// Single run against a local results file.
		job := &models.IacJob{
			ScanID:           uuid.NewString(),
			TargetPath:       cfg.ResultsPath,
			MessageCreatedAt: time.Now().UTC(),
		}
		event, err := pipeline.ProcessJob(ctx, job)
		if err != nil {
			logger.Log.Fatalf("job %s failed: %v", job.ScanID, err)
		}
		logger.Log.Infof("job %s reported %d metrics as event %s", job.ScanID, len(event.Metrics), event.ID)
		return
	}

	producer := &services.DefaultSQSProducer{
		Client:   sqsClient,
		QueueURL: cfg.SQSQueueURL,
	}
	jobChan := producer.Start(ctx)

	logger.Log.Infof("consuming jobs from %s with %d workers", cfg.SQSQueueURL, numWorkers)
	consumer := &services.DefaultJobConsumer{}
	consumer.Start(ctx, jobChan, pipeline, numWorkers)
	logger.Log.Info("shutting down")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Errorf("metrics server: %v", err)
	}
}
