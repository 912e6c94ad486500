// Package sqlstore implements the repositories on MySQL through gorm.
package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wahyu285/loundry/internal/platform/config"
	"github.com/wahyu285/loundry/internal/repositories"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	defaultConnMaxLife   = 5 * time.Minute
	defaultMaxOpenConns  = 25
	defaultMaxIdleConns  = 5
)

// Open connects to MySQL and applies the schema.
func Open(ctx context.Context, cfg config.MySQLConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(defaultConnMaxLife)
	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)
	sqlDB.SetMaxIdleConns(defaultMaxIdleConns)

	if err := EnsureSchema(ctx, gdb); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

// EnsureSchema creates or updates the tables used by the repositories.
func EnsureSchema(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&serviceModel{},
		&laundryItemModel{},
		&discountModel{},
		&accountModel{},
		&orderModel{},
		&orderItemModel{},
	); err != nil {
		return fmt.Errorf("migrate mysql schema: %w", err)
	}
	return nil
}

// wrapError classifies gorm and driver errors into repository errors.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.NewNotFoundError(op)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.NewConflictError(op, err)
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlDuplicateEntry, mysqlDeadlock, mysqlLockWaitTimeout:
			return repositories.NewConflictError(op, err)
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysqldriver.ErrInvalidConn) {
		return repositories.NewUnavailableError(op, err)
	}
	return repositories.NewError(op, err)
}
