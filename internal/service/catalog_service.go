package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	appconfig "github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/repository"
)

// ErrUnknownPackage indicates a package id that is not in the catalog.
var ErrUnknownPackage = errors.New("unknown package")

// CatalogService owns the purchasable packages. The catalog lives in the
// database, seeded from the embedded defaults and optionally hot-synced from
// a JSON document in object storage.
type CatalogService struct {
	cfg    *appconfig.Config
	repos  *repository.Repositories
	loader *appconfig.S3Loader
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(cfg *appconfig.Config, repos *repository.Repositories, storage *StorageService, logger *slog.Logger) *CatalogService {
	var loader *appconfig.S3Loader
	if storage != nil && storage.IsEnabled() {
		loader = appconfig.NewS3Loader(appconfig.S3LoaderConfig{
			S3Client: storage.Client(),
			Bucket:   storage.Bucket(),
			Key:      cfg.CatalogKey,
			Logger:   logger,
		})
	}
	return &CatalogService{cfg: cfg, repos: repos, loader: loader, logger: logger}
}

// SeedDefaults loads the embedded catalog into the database when the package
// tables are empty. Runs at startup so a fresh deployment sells something.
func (s *CatalogService) SeedDefaults(ctx context.Context) error {
	existing, err := s.repos.Package.ListCoinPackages(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to check catalog: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	catalog := appconfig.DefaultCatalog()
	if err := s.applyCatalog(ctx, &catalog); err != nil {
		return err
	}
	s.logger.Info("seeded default catalog",
		"coin_packages", len(catalog.Coins),
		"membership_packages", len(catalog.Memberships),
	)
	return nil
}

// RefreshFromStorage pulls the hosted catalog document when it changed and
// applies it. Safe to call often; the loader ETag-caches.
func (s *CatalogService) RefreshFromStorage(ctx context.Context) error {
	if s.loader == nil || !s.loader.NeedsRefresh() {
		return nil
	}
	result, err := s.loader.Fetch(ctx)
	if err != nil || result == nil || result.NotChanged {
		return err
	}

	catalog, err := appconfig.ParseCatalog(result.Data)
	if err != nil {
		s.logger.Error("hosted catalog rejected", "error", err)
		return err
	}
	if err := s.applyCatalog(ctx, catalog); err != nil {
		return err
	}
	s.logger.Info("hosted catalog applied",
		"etag", result.Etag,
		"coin_packages", len(catalog.Coins),
		"membership_packages", len(catalog.Memberships),
	)
	return nil
}

func (s *CatalogService) applyCatalog(ctx context.Context, catalog *appconfig.Catalog) error {
	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	now := time.Now().UTC()
	for i := range catalog.Coins {
		pkg := &catalog.Coins[i]
		if pkg.CreatedAt.IsZero() {
			pkg.CreatedAt = now
		}
		pkg.UpdatedAt = now
		if err := s.repos.Package.UpsertCoinPackage(ctx, pkg); err != nil {
			return fmt.Errorf("failed to upsert coin package %s: %w", pkg.ID, err)
		}
	}
	for i := range catalog.Memberships {
		pkg := &catalog.Memberships[i]
		if pkg.CreatedAt.IsZero() {
			pkg.CreatedAt = now
		}
		pkg.UpdatedAt = now
		if err := s.repos.Package.UpsertMembershipPackage(ctx, pkg); err != nil {
			return fmt.Errorf("failed to upsert membership package %s: %w", pkg.ID, err)
		}
	}
	return nil
}

// ListCoinPackages returns coin packages for the store page.
func (s *CatalogService) ListCoinPackages(ctx context.Context, activeOnly bool) ([]*models.CoinPackage, error) {
	return s.repos.Package.ListCoinPackages(ctx, activeOnly)
}

// ListMembershipPackages returns membership packages for the store page.
func (s *CatalogService) ListMembershipPackages(ctx context.Context, activeOnly bool) ([]*models.MembershipPackage, error) {
	return s.repos.Package.ListMembershipPackages(ctx, activeOnly)
}

// GetCoinPackage returns one active coin package.
func (s *CatalogService) GetCoinPackage(ctx context.Context, id string) (*models.CoinPackage, error) {
	pkg, err := s.repos.Package.GetCoinPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil || !pkg.Active {
		return nil, ErrUnknownPackage
	}
	return pkg, nil
}

// GetMembershipPackage returns one active membership package.
func (s *CatalogService) GetMembershipPackage(ctx context.Context, id string) (*models.MembershipPackage, error) {
	pkg, err := s.repos.Package.GetMembershipPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil || !pkg.Active {
		return nil, ErrUnknownPackage
	}
	return pkg, nil
}

// UpsertCoinPackage creates or updates a coin package (admin surface).
// Pricing runs through the same validation as the hosted catalog document.
func (s *CatalogService) UpsertCoinPackage(ctx context.Context, pkg *models.CoinPackage) error {
	if pkg.ID == "" || pkg.Coins <= 0 || pkg.PriceCents <= 0 {
		return errors.New("package needs id, positive coins and positive price")
	}
	if err := (&appconfig.Catalog{Coins: []models.CoinPackage{*pkg}}).Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now
	return s.repos.Package.UpsertCoinPackage(ctx, pkg)
}

// UpsertMembershipPackage creates or updates a membership package (admin surface).
func (s *CatalogService) UpsertMembershipPackage(ctx context.Context, pkg *models.MembershipPackage) error {
	if pkg.ID == "" || pkg.DurationDays <= 0 || pkg.PriceCents <= 0 {
		return errors.New("package needs id, positive duration and positive price")
	}
	if err := (&appconfig.Catalog{Memberships: []models.MembershipPackage{*pkg}}).Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now
	return s.repos.Package.UpsertMembershipPackage(ctx, pkg)
}
