package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerifyEmailMessage checks a submitted code against the user's live OTP and
// marks the profile email-verified on success.
type VerifyEmailMessage struct {
	UserID     uuid.UUID `json:"user_id"`
	Code       string    `json:"code" example:"042137" doc:"Six digit verification code."`
	OnResponse func(r *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

var _ command.Message = VerifyEmailMessage{}

// VerifyEmailResponse reports the verification outcome to the caller.
type VerifyEmailResponse struct {
	Verified bool     `json:"verified" example:"true" doc:"Did the code verify?"`
	Expired  bool     `json:"expired" example:"false" doc:"Was the code past its window?"`
	Errors   []string `json:"errors" example:"['verification code mismatch']" doc:"Error messages."`
}

// VerifyEmailHandler executes verification requests.
type VerifyEmailHandler struct {
	repo RepositoryManager
	otp  *OneTimePasswordService
}

// NewVerifyEmailHandler wires the handler.
func NewVerifyEmailHandler(repo RepositoryManager, otp *OneTimePasswordService) *VerifyEmailHandler {
	return &VerifyEmailHandler{repo: repo, otp: otp}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	resp := &VerifyEmailResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.otp.Verify(ctx, event.UserID, event.Code)
	switch {
	case err == nil:
		resp.Verified = true
	case goerrors.Is(err, ErrOTPExpired):
		resp.Expired = true
		resp.Errors = append(resp.Errors, ErrOTPExpired.Message)
	case goerrors.Is(err, ErrOTPMismatch):
		resp.Errors = append(resp.Errors, ErrOTPMismatch.Message)
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify code")
	}

	if resp.Verified {
		err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return h.repo.Profiles().MarkEmailVerifiedTx(ctx, tx, event.UserID)
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
