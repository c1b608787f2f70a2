package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const documentID = 1

// document holds the whole snapshot in a single row.
type document struct {
	ID        uint           `gorm:"primarykey"`
	Body      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (document) TableName() string {
	return "documents"
}

// SQLStore keeps the document in SQLite and replaces it inside a transaction.
type SQLStore struct {
	db   *gorm.DB
	lock fifoLock
}

func NewSQLStore(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Read(ctx context.Context) (*Snapshot, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer s.lock.Unlock()

	snap, _, err := s.load(s.db.WithContext(context.WithoutCancel(ctx)))
	return snap, err
}

func (s *SQLStore) Mutate(ctx context.Context, fn func(*Snapshot) error) error {
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer s.lock.Unlock()

	return s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		snap, exists, err := s.load(tx)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}

		body, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode store: %w", err)
		}
		if !exists {
			return tx.Create(&document{ID: documentID, Body: datatypes.JSON(body), UpdatedAt: time.Now()}).Error
		}
		return tx.Model(&document{ID: documentID}).Updates(map[string]interface{}{
			"body":       datatypes.JSON(body),
			"updated_at": time.Now(),
		}).Error
	})
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) load(tx *gorm.DB) (*Snapshot, bool, error) {
	var doc document
	err := tx.First(&doc, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		snap := &Snapshot{}
		snap.normalize()
		return snap, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load document: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(doc.Body, &snap); err != nil {
		return nil, true, fmt.Errorf("decode store: %w", err)
	}
	snap.normalize()
	return &snap, true, nil
}
