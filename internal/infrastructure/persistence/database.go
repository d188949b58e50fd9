package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/config"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/logger"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database is the PostgreSQL connection pool shared by the ledger repositories
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects to PostgreSQL with pool limits from cfg and fails when
// the server does not answer a ping. SQL is logged through zap at
// cfg.LogLevel.
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return open(postgres.Open(cfg.DSN()), cfg, zapLogger)
}

func open(dialector gorm.Dialector, cfg *config.DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	gormLog := logger.NewGormLogger(zapLogger.Named("gorm"), logger.MapGormLogLevel(cfg.LogLevel),
		logger.WithSlowThreshold(time.Duration(cfg.SlowQueryMillis)*time.Millisecond),
	)

	// Every ledger write already runs inside an explicit transaction scope.
	// The connection is pinged below with a deadline instead of by gorm.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &Database{DB: db}
	sqlDB, err := d.sqlDB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return d, nil
}

func (d *Database) sqlDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Ping is the database health probe
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LedgerModels lists the ledger tables in dependency order. Deployed schemas
// come from the SQL migrations; AutoMigrate over these models is for tests.
func LedgerModels() []any {
	return []any{
		&models.InvoiceModel{},
		&models.PaymentModel{},
		&models.RefundModel{},
		&models.AuditLogModel{},
	}
}

func AutoMigrateLedger(db *gorm.DB) error {
	return db.AutoMigrate(LedgerModels()...)
}
