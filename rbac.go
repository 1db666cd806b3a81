package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config holds the configuration for the role service
type Config struct {
	DB *gorm.DB
	// Store overrides the gorm store built from DB.
	Store Store

	RedisClient *redis.Client
	CacheTTL    time.Duration
	CachePrefix string

	// PermissionProcedure names a boolean stored function taking
	// (user_id, permission). Empty means the built-in join query.
	PermissionProcedure string

	AutoMigrate bool

	Logger     *zap.SugaredLogger
	Registerer prometheus.Registerer
}

// Service manages role assignments and answers permission checks.
type Service struct {
	store   Store
	cache   *PermissionCache
	log     *zap.SugaredLogger
	metrics *Metrics
}

// New initializes the role service.
func New(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "supportdesk:"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	store := cfg.Store
	if store == nil {
		gs, err := NewGormStore(cfg.DB, cfg.PermissionProcedure)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := gs.AutoMigrate(context.Background()); err != nil {
				return nil, err
			}
		}
		store = gs
	}

	return &Service{
		store:   store,
		cache:   NewPermissionCache(cfg.RedisClient, cfg.CachePrefix, cfg.CacheTTL, cfg.Logger),
		log:     cfg.Logger,
		metrics: NewMetrics(cfg.Registerer),
	}, nil
}

// Metrics exposes the service's collectors so a Guard can share them.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// SeedDefaults upserts the permission catalogue and default grants, then
// drops every cached entry.
func (s *Service) SeedDefaults(ctx context.Context) error {
	if err := s.store.Seed(ctx, Catalogue(), DefaultRolePermissions()); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	s.dropCache(ctx)
	s.log.Infow("permission catalogue seeded", "permissions", len(Catalogue()))
	return nil
}
