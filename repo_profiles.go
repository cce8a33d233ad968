package accounts

import (
	"context"
	"database/sql"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// IncrementFailedLoginsSQL serializes counter bumps in the database so
// concurrent failures cannot lose updates.
var IncrementFailedLoginsSQL = `UPDATE "account_profiles" AS "prof"
SET
	"failed_login_attempts" = "failed_login_attempts" + 1,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"prof"."deleted_at" IS NULL
AND (
	"prof"."id" = ?
) RETURNING "failed_login_attempts";`

// Profiles is the repository for account profiles.
type Profiles interface {
	repository.Repository[*AccountProfile]

	GetByUserID(ctx context.Context, userID uuid.UUID) (*AccountProfile, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AccountProfile, error)

	Register(ctx context.Context, profile *AccountProfile) (*AccountProfile, error)
	RegisterTx(ctx context.Context, tx bun.IDB, profile *AccountProfile) (*AccountProfile, error)

	UpdateApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus, opts ...ApprovalUpdateOption) (*AccountProfile, error)
	UpdateApprovalTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status ApprovalStatus, opts ...ApprovalUpdateOption) (*AccountProfile, error)

	IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error)
	IncrementFailedLoginsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int, error)
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error
	ResetFailedLoginsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetLockedUntil(ctx context.Context, id uuid.UUID, until *time.Time) error
	SetLockedUntilTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until *time.Time) error

	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error

	MaxEmployeeSequence(ctx context.Context, prefix string, year int) (int, error)
	MaxEmployeeSequenceTx(ctx context.Context, tx bun.IDB, prefix string, year int) (int, error)
}

// ApprovalUpdateOption adjusts the columns written by UpdateApproval.
type ApprovalUpdateOption func(*approvalUpdate)

type approvalUpdate struct {
	approvedBy   *uuid.UUID
	setApprover  bool
	approvedAt   *time.Time
	setApproved  bool
	suspendedAt  *time.Time
	setSuspended bool
	clearLockout bool
}

// WithApprovedBy records the reviewing admin on the profile.
func WithApprovedBy(id *uuid.UUID) ApprovalUpdateOption {
	return func(u *approvalUpdate) {
		u.approvedBy = id
		u.setApprover = true
	}
}

// WithApprovedAt records the review timestamp on the profile.
func WithApprovedAt(t *time.Time) ApprovalUpdateOption {
	return func(u *approvalUpdate) {
		u.approvedAt = t
		u.setApproved = true
	}
}

// WithSuspendedAt records (or clears) the suspension timestamp.
func WithSuspendedAt(t *time.Time) ApprovalUpdateOption {
	return func(u *approvalUpdate) {
		u.suspendedAt = t
		u.setSuspended = true
	}
}

// WithLockoutCleared resets the failure counter and lock alongside the
// status change, in the same statement.
func WithLockoutCleared() ApprovalUpdateOption {
	return func(u *approvalUpdate) {
		u.clearLockout = true
	}
}

type profiles struct {
	repository.Repository[*AccountProfile]
	db *bun.DB
}

var (
	_ Profiles                               = (*profiles)(nil)
	_ repository.Repository[*AccountProfile] = (*profiles)(nil)
)

// NewProfilesRepository wires the account profile repository over bun.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*AccountProfile](db, repository.ModelHandlers[*AccountProfile]{
		NewRecord: func() *AccountProfile { return &AccountProfile{} },
		GetID: func(p *AccountProfile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *AccountProfile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*AccountProfile, error) {
	return a.GetByUserIDTx(ctx, a.db, userID)
}

func (a *profiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AccountProfile, error) {
	record := &AccountProfile{}
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

func (a *profiles) Register(ctx context.Context, profile *AccountProfile) (*AccountProfile, error) {
	return a.RegisterTx(ctx, a.db, profile)
}

// RegisterTx creates the profile, enforcing one profile per user. A second
// variant for the same user is a data-integrity bug and surfaces as
// ErrDuplicateProfile rather than an upsert.
func (a *profiles) RegisterTx(ctx context.Context, tx bun.IDB, profile *AccountProfile) (*AccountProfile, error) {
	existing, err := a.GetByUserIDTx(ctx, tx, profile.UserID)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if existing != nil {
		return nil, ErrDuplicateProfile.WithMetadata(map[string]any{
			"user_id":          profile.UserID.String(),
			"existing_variant": string(existing.Variant),
			"new_variant":      string(profile.Variant),
		})
	}

	profile.EnsureStatus()
	return a.Repository.CreateTx(ctx, tx, profile)
}

func (a *profiles) UpdateApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus, opts ...ApprovalUpdateOption) (*AccountProfile, error) {
	return a.UpdateApprovalTx(ctx, a.db, id, status, opts...)
}

func (a *profiles) UpdateApprovalTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status ApprovalStatus, opts ...ApprovalUpdateOption) (*AccountProfile, error) {
	update := &approvalUpdate{}
	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	record := &AccountProfile{}
	q := tx.NewUpdate().
		Model(record).
		Set("approval_status = ?", status).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Returning("*")

	if update.setApprover {
		q = q.Set("approved_by = ?", update.approvedBy)
	}
	if update.setApproved {
		q = q.Set("approved_at = ?", update.approvedAt)
	}
	if update.setSuspended {
		q = q.Set("suspended_at = ?", update.suspendedAt)
	}
	if update.clearLockout {
		q = q.Set("failed_login_attempts = 0").
			Set("account_locked_until = NULL")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return record, nil
}

func (a *profiles) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	return a.IncrementFailedLoginsTx(ctx, a.db, id)
}

func (a *profiles) IncrementFailedLoginsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int, error) {
	var attempts int
	err := tx.NewRaw(IncrementFailedLoginsSQL, id).Scan(ctx, &attempts)
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (a *profiles) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	return a.ResetFailedLoginsTx(ctx, a.db, id)
}

func (a *profiles) ResetFailedLoginsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(`
		UPDATE "account_profiles" AS "prof"
		SET
			"failed_login_attempts" = 0,
			"account_locked_until" = NULL,
			"updated_at" = CURRENT_TIMESTAMP
		WHERE
			("prof".id = ?)
			AND "prof"."deleted_at" IS NULL;
	`, id).Exec(ctx)

	return err
}

func (a *profiles) SetLockedUntil(ctx context.Context, id uuid.UUID, until *time.Time) error {
	return a.SetLockedUntilTx(ctx, a.db, id, until)
}

func (a *profiles) SetLockedUntilTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until *time.Time) error {
	_, err := tx.NewUpdate().
		Model((*AccountProfile)(nil)).
		Set("account_locked_until = ?", until).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)

	return err
}

func (a *profiles) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	return a.MarkEmailVerifiedTx(ctx, a.db, userID)
}

func (a *profiles) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*AccountProfile)(nil)).
		Set("is_email_verified = ?", true).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)

	return err
}

func (a *profiles) MaxEmployeeSequence(ctx context.Context, prefix string, year int) (int, error) {
	return a.MaxEmployeeSequenceTx(ctx, a.db, prefix, year)
}

// MaxEmployeeSequenceTx reads the highest assigned sequence for a
// prefix/year pair. Zero means none assigned yet.
func (a *profiles) MaxEmployeeSequenceTx(ctx context.Context, tx bun.IDB, prefix string, year int) (int, error) {
	pattern := FormatEmployeeID(prefix, year, 0)
	// strip the zero sequence, keep "TG-2025-"
	pattern = pattern[:len(pattern)-4] + "%"

	var max sql.NullInt64
	err := tx.NewRaw(`
		SELECT MAX(CAST(SUBSTR("employee_id", 9, 4) AS INTEGER))
		FROM "account_profiles"
		WHERE "employee_id" LIKE ?
		AND "deleted_at" IS NULL;
	`, pattern).Scan(ctx, &max)

	if err != nil {
		return 0, err
	}

	if !max.Valid {
		return 0, nil
	}

	return int(max.Int64), nil
}

// IsRecordNotFound reports whether the error is the repository's not-found.
func IsRecordNotFound(err error) bool {
	return repository.IsRecordNotFound(err)
}
