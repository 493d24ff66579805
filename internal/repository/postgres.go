package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.TransferRecord{}, &models.WithdrawalRecord{}, &models.SessionLock{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

// SaveTransfer inserts or updates a transfer record by id.
func (db *PostgresDB) SaveTransfer(record *models.TransferRecord) error {
	if err := db.Conn.Save(record).Error; err != nil {
		return fmt.Errorf("failed to save transfer %s: %w", record.ID, err)
	}
	return nil
}

func (db *PostgresDB) GetTransfer(id string) (*models.TransferRecord, error) {
	var record models.TransferRecord
	if err := db.Conn.Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return &record, nil
}

func (db *PostgresDB) ListTransfersByAddress(address string, limit int) ([]*models.TransferRecord, error) {
	var records []*models.TransferRecord
	query := db.Conn.Where("LOWER(from_address) = LOWER(?)", address).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return records, nil
}

func (db *PostgresDB) AddWithdrawal(record *models.WithdrawalRecord) error {
	db.logger.Debug("Adding withdrawal record", "transfer_id", record.TransferID, "status", record.Status)
	if err := db.Conn.Create(record).Error; err != nil {
		return fmt.Errorf("failed to add withdrawal: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetWithdrawalByTransferID(transferID string) (*models.WithdrawalRecord, error) {
	var record models.WithdrawalRecord
	if err := db.Conn.Where("transfer_id = ?", transferID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &record, nil
}

// AcquireSessionLock takes the named lock unless another holder's lock is still
// unexpired. A single upsert keeps the check and the write atomic.
func (db *PostgresDB) AcquireSessionLock(name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now().Unix()
	lock := models.SessionLock{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now,
		ExpiresAt:  now + int64(ttl.Seconds()),
	}

	result := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lock_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"instance_id", "acquired_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: models.SessionLock{}.TableName(), Name: "expires_at"}, Value: now},
		}},
	}).Create(&lock)
	if result.Error != nil {
		return false, fmt.Errorf("failed to acquire session lock %s: %w", name, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (db *PostgresDB) ReleaseSessionLock(name, instanceID string) error {
	if err := db.Conn.Where("lock_name = ? AND instance_id = ?", name, instanceID).Delete(&models.SessionLock{}).Error; err != nil {
		return fmt.Errorf("failed to release session lock %s: %w", name, err)
	}
	return nil
}

func (db *PostgresDB) RemoveExpiredSessionLocks(timestamp int64) error {
	if err := db.Conn.Where("expires_at < ?", timestamp).Delete(&models.SessionLock{}).Error; err != nil {
		return fmt.Errorf("failed to remove expired session locks: %w", err)
	}
	return nil
}

var _ models.Repository = (*PostgresDB)(nil)
