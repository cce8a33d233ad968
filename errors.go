package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCredentials identifies generic credential failures.
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeAccountLocked identifies lockout rejections.
	TextCodeAccountLocked = "ACCOUNT_LOCKED"
	// TextCodeAccountNotApproved identifies approval gate rejections.
	TextCodeAccountNotApproved = "ACCOUNT_NOT_APPROVED"
	// TextCodeOTPExpired identifies codes submitted after their window.
	TextCodeOTPExpired = "OTP_EXPIRED"
	// TextCodeOTPMismatch identifies wrong or missing codes.
	TextCodeOTPMismatch = "OTP_MISMATCH"
	// TextCodeResendTooSoon identifies resends inside the cooldown.
	TextCodeResendTooSoon = "OTP_RESEND_TOO_SOON"
	// TextCodeInvalidTransition identifies illegal approval status changes.
	TextCodeInvalidTransition = "INVALID_APPROVAL_TRANSITION"
	// TextCodeDuplicateProfile identifies one-profile-per-user violations.
	TextCodeDuplicateProfile = "DUPLICATE_PROFILE"
	// TextCodeEmployeeIDFormat identifies malformed employee ids.
	TextCodeEmployeeIDFormat = "EMPLOYEE_ID_FORMAT_INVALID"
	// TextCodeSessionNotFound identifies requests without a session cookie.
	TextCodeSessionNotFound = "SESSION_NOT_FOUND"
	// TextCodeSessionDecodeError identifies undecodable session tokens.
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	// TextCodeClaimsMappingError identifies tokens with unusable claims.
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	// TextCodeIdentityNotFound identifies lookups for unknown identities.
	TextCodeIdentityNotFound = "IDENTITY_NOT_FOUND"
	// TextCodeTokenExpired identifies expired session tokens.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed identifies tokens we cannot parse.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
)

// ErrInvalidCredentials is the only error the login boundary reveals for bad
// identifier/password combinations. It never discloses whether the account
// exists.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountLocked is returned while the lockout window is still open.
var ErrAccountLocked = goerrors.New("account temporarily locked", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountLocked).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotApproved is returned when a privileged profile is not in the
// approved state. Use NotApprovedError to attach the concrete status.
var ErrAccountNotApproved = goerrors.New("account not approved", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotApproved).
	WithCode(goerrors.CodeForbidden)

// ErrOTPExpired is returned when a code is submitted after its expiry window.
var ErrOTPExpired = goerrors.New("verification code expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeOTPExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrOTPMismatch is returned when no live code exists or the submitted code
// differs from the stored one.
var ErrOTPMismatch = goerrors.New("verification code mismatch", goerrors.CategoryValidation).
	WithTextCode(TextCodeOTPMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrResendTooSoon is returned when a resend is requested inside the cooldown.
var ErrResendTooSoon = goerrors.New("verification code resend requested too soon", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeResendTooSoon)

// ErrInvalidTransition is returned when a requested approval status change is
// not allowed. It is a data-integrity error and is never silently coerced.
var ErrInvalidTransition = goerrors.New("invalid approval state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateProfile is returned when a second profile variant would be
// created for the same user. Surfaced to operators, never auto-corrected.
var ErrDuplicateProfile = goerrors.New("account profile already exists for user", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateProfile).
	WithCode(goerrors.CodeConflict)

// ErrEmployeeIDFormat is returned for ids that do not match AA-YYYY-NNNN.
var ErrEmployeeIDFormat = goerrors.New("employee id format invalid", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmployeeIDFormat).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for session tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens we cannot parse.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// NotApprovedError wraps ErrAccountNotApproved with the concrete status so
// callers can distinguish pending, denied, and suspended accounts.
func NotApprovedError(status ApprovalStatus) *goerrors.Error {
	clone := ErrAccountNotApproved.Clone()
	if clone == nil {
		return ErrAccountNotApproved
	}
	clone.Source = ErrAccountNotApproved
	return clone.WithMetadata(map[string]any{"approval_status": string(status)})
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
