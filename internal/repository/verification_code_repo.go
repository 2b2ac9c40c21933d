package repository

import (
	"context"
	"time"

	"github.com/musayazlik/postify/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationCodeRepository stores at most one code per email.
//
// Replace must overwrite any existing code for the same email in a single
// write, and Consume must match and delete in a single write, so that
// concurrent callers can neither leave two codes behind nor redeem one code
// twice.
type VerificationCodeRepository interface {
	Replace(ctx context.Context, code *entity.VerificationCode) error
	Consume(ctx context.Context, email string, code string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type verificationCodeRepository struct {
	db *gorm.DB
}

func NewVerificationCodeRepository(db *gorm.DB) VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

func (r *verificationCodeRepository) Replace(ctx context.Context, code *entity.VerificationCode) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "created_at"}),
		}).
		Create(code).Error
}

func (r *verificationCodeRepository) Consume(ctx context.Context, email string, code string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("email = ? AND code = ? AND expires_at > ?", email, code, now).
		Delete(&entity.VerificationCode{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *verificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&entity.VerificationCode{})
	return result.RowsAffected, result.Error
}
