package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type CatalogRepository interface {
	ListActivePackages(ctx context.Context) ([]domain.Package, error)
	GetPackage(ctx context.Context, id string) (*domain.Package, error)
	ListActiveAddons(ctx context.Context) ([]domain.Addon, error)
	GetAddonsByIDs(ctx context.Context, ids []string) ([]domain.Addon, error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetProfileByPhone(ctx context.Context, phone string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	MarkPhoneVerified(ctx context.Context, userID, phone string) error
}

type OrderRepository interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	InsertOrFetchOrder(ctx context.Context, order *domain.Order, event *domain.OutboxEvent) (*domain.Order, bool, error)
}

type AddonOrderRepository interface {
	GetAddonOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.AddonOrder, error)
	ListAddonOrdersByUserID(ctx context.Context, userID string) ([]*domain.AddonOrder, error)
	InsertOrFetchAddonOrder(ctx context.Context, order *domain.AddonOrder, event *domain.OutboxEvent) (*domain.AddonOrder, bool, error)
}

type PasswordResetRepository interface {
	CreateResetAttempt(ctx context.Context, attempt *domain.PasswordResetAttempt) error
	GetResetAttempt(ctx context.Context, id uuid.UUID) (*domain.PasswordResetAttempt, error)
	LatestResetAttempt(ctx context.Context, phone string) (*domain.PasswordResetAttempt, error)
	IncrementResetAttempts(ctx context.Context, id uuid.UUID) (int, error)
	TransitionResetAttempt(ctx context.Context, id uuid.UUID, from, to domain.PasswordResetStatus) error
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
	DeleteProcessedEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RepoInterface interface {
	CatalogRepository
	ProfileRepository
	OrderRepository
	AddonOrderRepository
	PasswordResetRepository
	OutboxRepository
	RunMigrations(*Credentials) error
	Close() error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	slog.Info("connected to postgres", slog.String("host", cred.Host), slog.String("db", cred.DBName))
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
