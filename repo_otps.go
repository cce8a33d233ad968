package accounts

import (
	"context"
	"database/sql"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OneTimePasswords is the repository for verification codes. At most one
// live code exists per user; Replace swaps the old one out atomically.
type OneTimePasswords interface {
	repository.Repository[*OneTimePassword]

	GetByUserID(ctx context.Context, userID uuid.UUID) (*OneTimePassword, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*OneTimePassword, error)
	Replace(ctx context.Context, otp *OneTimePassword) (*OneTimePassword, error)
	ReplaceTx(ctx context.Context, tx bun.IDB, otp *OneTimePassword) (*OneTimePassword, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type otps struct {
	repository.Repository[*OneTimePassword]
	db *bun.DB
}

var (
	_ OneTimePasswords                        = (*otps)(nil)
	_ repository.Repository[*OneTimePassword] = (*otps)(nil)
)

// NewOneTimePasswordsRepository wires the OTP repository over bun.
func NewOneTimePasswordsRepository(db *bun.DB) OneTimePasswords {
	repo := repository.NewRepository[*OneTimePassword](db, repository.ModelHandlers[*OneTimePassword]{
		NewRecord: func() *OneTimePassword { return &OneTimePassword{} },
		GetID: func(o *OneTimePassword) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *OneTimePassword, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
	})

	return &otps{
		Repository: repo,
		db:         db,
	}
}

func (a *otps) GetByUserID(ctx context.Context, userID uuid.UUID) (*OneTimePassword, error) {
	return a.GetByUserIDTx(ctx, a.db, userID)
}

func (a *otps) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*OneTimePassword, error) {
	record := &OneTimePassword{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id": userID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *otps) Replace(ctx context.Context, otp *OneTimePassword) (*OneTimePassword, error) {
	return a.ReplaceTx(ctx, a.db, otp)
}

// ReplaceTx is create-or-replace, not append: the previous code for the user
// is removed in the same statement batch that inserts the new one.
func (a *otps) ReplaceTx(ctx context.Context, tx bun.IDB, otp *OneTimePassword) (*OneTimePassword, error) {
	if err := a.DeleteByUserIDTx(ctx, tx, otp.UserID); err != nil {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, otp)
}

func (a *otps) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return a.DeleteByUserIDTx(ctx, a.db, userID)
}

func (a *otps) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*OneTimePassword)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)

	return err
}
