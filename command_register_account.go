package accounts

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage creates the account profile for a user the identity
// store already knows about. Privileged variants start pending and get an
// employee id; clients skip the approval pipeline entirely.
type RegisterAccountMessage struct {
	UserID    uuid.UUID      `json:"user_id"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Variant   ProfileVariant `json:"variant"`
	RoleTag   RoleTag        `json:"role_tag"`
	Region    string         `json:"region"`
	UseHashid bool           `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

var _ command.Message = RegisterAccountMessage{}

// Validate checks the payload before any storage is touched.
func (e RegisterAccountMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	if !e.Variant.IsValid() {
		return goerrors.New("unknown profile variant", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"variant": string(e.Variant)})
	}

	if e.Phone != "" {
		region := e.Region
		if region == "" {
			region = "US"
		}
		num, err := phonenumbers.Parse(e.Phone, region)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return goerrors.New("invalid phone number", goerrors.CategoryValidation).
				WithMetadata(map[string]any{"phone": e.Phone})
		}
	}

	return nil
}

// RegisterAccountHandler executes registrations.
type RegisterAccountHandler struct {
	repo       RepositoryManager
	otp        *OneTimePasswordService
	prefix     string
	now        func() time.Time
	OnAccepted func(profile *AccountProfile, otp *OneTimePassword)
}

// NewRegisterAccountHandler wires the handler. The OTP service issues the
// initial verification code inside the registration flow.
func NewRegisterAccountHandler(repo RepositoryManager, otp *OneTimePasswordService) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:   repo,
		otp:    otp,
		prefix: DefaultEmployeeIDPrefix,
		now:    time.Now,
	}
}

// WithEmployeeIDPrefix overrides the org prefix used for generated ids.
func (h *RegisterAccountHandler) WithEmployeeIDPrefix(prefix string) *RegisterAccountHandler {
	if prefix != "" {
		h.prefix = prefix
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *RegisterAccountHandler) WithClock(clock func() time.Time) *RegisterAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	profile := &AccountProfile{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		userID := event.UserID
		if userID == uuid.Nil && event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				userID = id
			}
		}
		if userID == uuid.Nil {
			return goerrors.New("registration requires a user id", goerrors.CategoryValidation)
		}

		profile.UserID = userID
		profile.Variant = event.Variant
		profile.RoleTag = event.RoleTag
		profile.EnsureStatus()

		if event.Variant.Privileged() {
			id, err := NextEmployeeIDTx(ctx, tx, h.repo.Profiles(), h.prefix, h.now().Year())
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "could not assign employee id")
			}
			profile.EmployeeID = &id
		}

		created, err := h.repo.Profiles().RegisterTx(ctx, tx, profile)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account profile")
		}

		profile = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute account registration")
	}

	// The code rides outside the transaction: a failed notification must not
	// roll back the profile.
	code, err := h.otp.Generate(ctx, profile.UserID, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification code")
	}

	if h.OnAccepted != nil {
		h.OnAccepted(profile, code)
	}

	return nil
}
