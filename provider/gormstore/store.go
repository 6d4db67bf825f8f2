package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/MrEthical07/accountflow"
)

// profileRow is the SQL schema of a profile.
type profileRow struct {
	IdentityID     string          `gorm:"primaryKey;size:128"`
	Lastname       string          `gorm:"not null;size:255"`
	Firstname      string          `gorm:"not null;size:255"`
	Email          string          `gorm:"not null;size:255;index"`
	Birthdate      *datatypes.Date `gorm:"type:date"`
	Gender         string          `gorm:"not null;size:16"`
	ProfilePicture *string         `gorm:"size:1024"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (profileRow) TableName() string { return "profiles" }

type Opts struct {
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string // silent / error / warn / info
}

// Open connects to PostgreSQL with pool settings applied.
func Open(o Opts) (*gorm.DB, error) {
	lvl := logger.Warn
	switch o.LogLevel {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	db, err := gorm.Open(postgres.Open(o.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(lvl),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if o.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetimeMin > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	}
	return db, nil
}

// Store is an accountflow.ProfileStore on a SQL table.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the profiles table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&profileRow{})
}

// Save upserts the profile for id.
func (s *Store) Save(ctx context.Context, id accountflow.IdentityID, u accountflow.User) error {
	if !id.Valid() {
		return accountflow.NewPersistenceError(accountflow.PersistenceInvalidUserData, accountflow.ErrInvalidIdentityID)
	}
	if err := u.Validate(); err != nil {
		return accountflow.NewPersistenceError(accountflow.PersistenceInvalidUserData, err)
	}
	row := toRow(id, u)
	err := s.upsert(s.db.WithContext(ctx), &row).Error
	return mapError(err)
}

func (s *Store) upsert(tx *gorm.DB, row *profileRow) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lastname", "firstname", "email", "birthdate", "gender", "profile_picture", "updated_at"}),
	}).Create(row)
}

func (s *Store) Fetch(ctx context.Context, id accountflow.IdentityID) (accountflow.User, error) {
	if !id.Valid() {
		return accountflow.User{}, accountflow.ErrDocumentNotFound
	}
	var row profileRow
	if err := s.db.WithContext(ctx).First(&row, "identity_id = ?", id.String()).Error; err != nil {
		return accountflow.User{}, mapError(err)
	}
	return fromRow(row)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return accountflow.NewPersistenceError(accountflow.PersistenceDocumentNotFound, err)
	case errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidField):
		return accountflow.NewPersistenceError(accountflow.PersistenceInvalidUserData, err)
	default:
		return accountflow.NewPersistenceError(accountflow.PersistenceDefault, err)
	}
}

func toRow(id accountflow.IdentityID, u accountflow.User) profileRow {
	row := profileRow{
		IdentityID: id.String(),
		Lastname:   u.Lastname,
		Firstname:  u.Firstname,
		Email:      u.Email,
		Gender:     string(u.Gender),
	}
	if u.Birthdate != nil {
		y, m, d := u.Birthdate.UTC().Date()
		date := datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
		row.Birthdate = &date
	}
	if u.ProfilePicture != nil {
		p := *u.ProfilePicture
		row.ProfilePicture = &p
	}
	return row
}

func fromRow(row profileRow) (accountflow.User, error) {
	u := accountflow.User{
		Lastname:  row.Lastname,
		Firstname: row.Firstname,
		Email:     row.Email,
		Gender:    accountflow.Gender(row.Gender),
	}
	if row.Birthdate != nil {
		y, m, d := time.Time(*row.Birthdate).Date()
		b := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		u.Birthdate = &b
	}
	if row.ProfilePicture != nil {
		p := *row.ProfilePicture
		u.ProfilePicture = &p
	}
	if err := u.Validate(); err != nil {
		return accountflow.User{}, accountflow.NewPersistenceError(accountflow.PersistenceInvalidUserData, err)
	}
	return u, nil
}
