package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"golang.org/x/sync/errgroup"

	"admin-service/internal/audit"
	"admin-service/internal/client"
	"admin-service/internal/config"
	"admin-service/internal/encryption"
	"admin-service/internal/hashing"
	"admin-service/internal/keys"
	"admin-service/internal/model"
	"admin-service/internal/repository/postgres"
	redisrepo "admin-service/internal/repository/redis"
	"admin-service/internal/search"
	"admin-service/internal/service"
	"admin-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	// Clients
	postgresClient   *postgres.PostgresClient
	redisClient      *client.RedisClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient
	esClient         *client.ESClient
	kmsClient        *kms.Client

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.Manager

	// Repositories and collaborators
	adminRepository    *postgres.AdminRepository
	questionRepository *postgres.SecurityQuestionRepository
	keypairRepository  *postgres.KeypairRepository
	accountCache       *redisrepo.AccountCache
	keyIssuer          *keys.Issuer
	auditRecorder      *audit.Recorder
	directoryIndexer   *search.Indexer

	adminService *service.AdminService

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("clickhouse_enabled", cfg.Clickhouse.Enabled),
		util.Bool("elasticsearch_enabled", cfg.Elasticsearch.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health
// checks. Postgres is mandatory; the remaining backends are optional and only
// fatal in production when enabled.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Postgres
	pgClient, err := postgres.NewPostgresClient(f.config)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	f.postgresClient = pgClient
	if err := f.postgresClient.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	util.Info("Postgres client initialized and schema ensured")

	var initErrors []error

	// Redis
	if redisClient, err := client.NewRedisClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
			f.redisClient = nil
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// Kafka
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	// ClickHouse
	if f.config.Clickhouse.Enabled {
		if chClient, err := client.NewClickHouseClient(f.config); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = chClient
			if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
				f.clickhouseClient = nil
			} else {
				util.Info("ClickHouse client initialized and healthy")
			}
		}
	}

	// Elasticsearch
	if f.config.Elasticsearch.Enabled {
		if esClient, err := client.NewElasticsearchClient(f.config); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = esClient
			if err := f.esClient.HealthCheck(); err != nil {
				initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
				f.esClient = nil
			} else {
				util.Info("Elasticsearch client initialized and healthy")
			}
		}
	}

	// KMS
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			initErrors = append(initErrors, fmt.Errorf("aws config: %w", err))
		} else {
			f.kmsClient = kms.NewFromConfig(awsCfg)
			util.Info("KMS client initialized", util.String("region", f.config.KMS.Region))
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers wires hashing, encryption, repositories and the admin
// service on top of the initialized clients.
func (f *Factory) initializeManagers() error {
	f.hasher = hashing.NewHasher(f.config)
	f.encryptionManager = encryption.NewManager(f.config, f.kmsClient)

	f.adminRepository = postgres.NewAdminRepository(f.postgresClient, f.encryptionManager)
	f.questionRepository = postgres.NewSecurityQuestionRepository(f.postgresClient)
	f.keypairRepository = postgres.NewKeypairRepository(f.postgresClient)
	f.keyIssuer = keys.NewIssuer(f.keypairRepository)

	if f.redisClient != nil {
		f.accountCache = redisrepo.NewAccountCache(f.redisClient, f.config.Redis.CacheTTL)
	}

	if f.kafkaProducer != nil || f.clickhouseClient != nil {
		recorder, err := audit.NewRecorder(f.kafkaProducer, f.clickhouseClient)
		if err != nil {
			return fmt.Errorf("audit recorder: %w", err)
		}
		f.auditRecorder = recorder
	}

	if f.esClient != nil {
		f.directoryIndexer = search.NewIndexer(f.esClient, f.config.Elasticsearch.Index)
	}

	// Optional collaborators must be passed as untyped nils, a typed nil
	// would defeat the service's nil checks.
	var cache model.AccountCache
	if f.accountCache != nil {
		cache = f.accountCache
	}
	var auditor model.AuditSink
	if f.auditRecorder != nil {
		auditor = f.auditRecorder
	}
	var indexer model.DirectoryIndexer
	if f.directoryIndexer != nil {
		indexer = f.directoryIndexer
	}

	f.adminService = service.NewAdminService(
		f.adminRepository,
		f.questionRepository,
		f.keyIssuer,
		f.hasher,
		nil, // default notifier
		cache,
		auditor,
		indexer,
		f.config.Security,
	)

	util.Info("Managers initialized successfully",
		util.Bool("cache_enabled", cache != nil),
		util.Bool("audit_enabled", auditor != nil),
		util.Bool("indexer_enabled", indexer != nil),
	)

	return nil
}

// AdminService returns the fully wired administrator service.
func (f *Factory) AdminService() *service.AdminService {
	return f.adminService
}

func (f *Factory) Config() *config.Config {
	return f.config
}

// HealthCheck probes every initialized backend in parallel.
func (f *Factory) HealthCheck(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := f.postgresClient.HealthCheck(gctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	})

	if f.redisClient != nil {
		g.Go(func() error {
			if err := f.redisClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})
	}

	if f.clickhouseClient != nil {
		g.Go(func() error {
			if err := f.clickhouseClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("clickhouse: %w", err)
			}
			return nil
		})
	}

	if f.esClient != nil {
		g.Go(func() error {
			if err := f.esClient.HealthCheck(); err != nil {
				return fmt.Errorf("elasticsearch: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.postgresClient != nil {
			f.postgresClient.Close()
			util.Info("Postgres client closed")
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
			util.Info("Encryption manager cache cleared")
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}
