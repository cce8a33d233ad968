package accounts

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// GetRouterSession pulls the decoded session out of request locals, where the
// token middleware leaves it.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	cookie := c.Locals(key)
	if cookie == nil {
		return nil, ErrUnableToFindSession
	}

	token, ok := cookie.(*jwt.Token)
	if token == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	claims, ok := token.Claims.(*JWTClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToMapClaims
	}

	return sessionFromAuthClaims(claims)
}

// RegisterAccountRoutes mounts the account endpoints on the given router.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {

	controller := NewAccountController(opts...)

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Post(controller.Routes.VerifyEmail, controller.VerifyEmailPost).
		SetName("verify-email.post")
	app.Post(controller.Routes.ResendCode, controller.ResendCodePost).
		SetName("resend-code.post")

	app.Post(fmt.Sprintf("%s/:id/approve", controller.Routes.Accounts), controller.ApprovePost).
		SetName("account-approve.post")
	app.Post(fmt.Sprintf("%s/:id/deny", controller.Routes.Accounts), controller.DenyPost).
		SetName("account-deny.post")
	app.Post(fmt.Sprintf("%s/:id/suspend", controller.Routes.Accounts), controller.SuspendPost).
		SetName("account-suspend.post")
	app.Post(fmt.Sprintf("%s/:id/reinstate", controller.Routes.Accounts), controller.ReinstatePost).
		SetName("account-reinstate.post")
}

type AccountControllerRoutes struct {
	Login       string
	Logout      string
	Register    string
	VerifyEmail string
	ResendCode  string
	Accounts    string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AccountControllerRoutes
	Gate         *AuthorizationGate
	Lifecycle    LifecycleManager
	Register     *RegisterAccountHandler
	Verify       *VerifyEmailHandler
	OTP          *OneTimePasswordService
	ErrorHandler func(router.Context, error) error
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: &AccountControllerRoutes{
			Login:       "/login",
			Logout:      "/logout",
			Register:    "/register",
			VerifyEmail: "/verify-email",
			ResendCode:  "/resend-code",
			Accounts:    "/accounts",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Gate == nil {
		panic("Missing AuthorizationGate in account controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Gate.ErrorHandler
	}

	return c
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = logger
		return c
	}
}

func WithControllerRepository(repo RepositoryManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Repo = repo
		return c
	}
}

func WithControllerGate(gate *AuthorizationGate) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Gate = gate
		return c
	}
}

func WithControllerLifecycle(lm LifecycleManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Lifecycle = lm
		return c
	}
}

func WithControllerRegistration(h *RegisterAccountHandler) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Register = h
		return c
	}
}

func WithControllerVerification(h *VerifyEmailHandler) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Verify = h
		return c
	}
}

func WithControllerOTP(svc *OneTimePasswordService) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.OTP = svc
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession will return the remember me flag
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"errors": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	if err := a.Gate.Login(ctx, payload); err != nil {
		a.Logger.Warn("login rejected for %s: %v", payload.Identifier, err)
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"errors": map[string]string{
				"authentication": "Authentication Error",
			},
		})
	}

	redirect := a.Gate.GetRedirect(ctx, "/")

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AccountController) LogOut(ctx router.Context) error {
	a.Gate.Logout(ctx)
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (a *AccountController) RegistrationCreate(ctx router.Context) error {
	if a.Register == nil {
		return a.ErrorHandler(ctx, goerrors.New("registration disabled", goerrors.CategoryOperation))
	}

	payload := RegisterAccountMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	var created *AccountProfile
	a.Register.OnAccepted = func(profile *AccountProfile, _ *OneTimePassword) {
		created = profile
	}

	if err := a.Register.Execute(ctx.Context(), payload); err != nil {
		if goerrors.Is(err, ErrDuplicateProfile) {
			return ctx.JSON(fiber.StatusConflict, map[string]any{
				"errors": map[string]string{
					"registration": "account already exists for user",
				},
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, created)
}

// VerifyEmailRequest payload
type VerifyEmailRequest struct {
	UserID string `form:"user_id" json:"user_id"`
	Code   string `form:"code" json:"code"`
}

// Validate will run validation rules
func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.Code, validation.Required),
	)
}

func (a *AccountController) VerifyEmailPost(ctx router.Context) error {
	if a.Verify == nil {
		return a.ErrorHandler(ctx, goerrors.New("verification disabled", goerrors.CategoryOperation))
	}

	payload := new(VerifyEmailRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"errors": err.Error(),
		})
	}

	var response *VerifyEmailResponse
	msg := VerifyEmailMessage{
		UserID: uuid.MustParse(payload.UserID),
		Code:   payload.Code,
		OnResponse: func(r *VerifyEmailResponse) {
			response = r
		},
	}

	if err := a.Verify.Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	status := router.StatusOK
	if response != nil && !response.Verified {
		status = fiber.StatusUnprocessableEntity
	}

	return ctx.JSON(status, response)
}

// ResendCodeRequest payload
type ResendCodeRequest struct {
	UserID      string `form:"user_id" json:"user_id"`
	Destination string `form:"destination" json:"destination"`
}

// Validate will run validation rules
func (r ResendCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.Destination, validation.Required, is.Email),
	)
}

func (a *AccountController) ResendCodePost(ctx router.Context) error {
	if a.OTP == nil {
		return a.ErrorHandler(ctx, goerrors.New("verification disabled", goerrors.CategoryOperation))
	}

	payload := new(ResendCodeRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"errors": err.Error(),
		})
	}

	userID := uuid.MustParse(payload.UserID)
	if _, err := a.OTP.Resend(ctx.Context(), userID, payload.Destination); err != nil {
		if goerrors.Is(err, ErrResendTooSoon) {
			return ctx.JSON(fiber.StatusTooManyRequests, map[string]any{
				"errors": map[string]string{
					"resend": "verification code requested too recently",
				},
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusAccepted, map[string]any{
		"sent": true,
	})
}

// LifecycleRequest carries the optional reason for a status change.
type LifecycleRequest struct {
	Reason string `form:"reason" json:"reason"`
}

func (a *AccountController) ApprovePost(ctx router.Context) error {
	return a.lifecyclePost(ctx, func(actor ActorRef, profile *AccountProfile, _ string) (*TransitionResult, error) {
		return a.Lifecycle.Approve(ctx.Context(), actor, profile)
	})
}

func (a *AccountController) DenyPost(ctx router.Context) error {
	return a.lifecyclePost(ctx, func(actor ActorRef, profile *AccountProfile, reason string) (*TransitionResult, error) {
		return a.Lifecycle.Deny(ctx.Context(), actor, profile, reason)
	})
}

func (a *AccountController) SuspendPost(ctx router.Context) error {
	return a.lifecyclePost(ctx, func(actor ActorRef, profile *AccountProfile, reason string) (*TransitionResult, error) {
		return a.Lifecycle.Suspend(ctx.Context(), actor, profile, reason)
	})
}

func (a *AccountController) ReinstatePost(ctx router.Context) error {
	return a.lifecyclePost(ctx, func(actor ActorRef, profile *AccountProfile, _ string) (*TransitionResult, error) {
		return a.Lifecycle.Unsuspend(ctx.Context(), actor, profile)
	})
}

type lifecycleCall func(actor ActorRef, profile *AccountProfile, reason string) (*TransitionResult, error)

// lifecyclePost resolves the acting admin and the target profile, then runs
// the requested transition. Only admins and above may change account status.
func (a *AccountController) lifecyclePost(ctx router.Context, call lifecycleCall) error {
	if a.Lifecycle == nil {
		return a.ErrorHandler(ctx, goerrors.New("lifecycle management disabled", goerrors.CategoryOperation))
	}

	role := RoleFromContext(ctx.Context())
	if !role.IsAtLeast(RoleAdmin) {
		return ctx.Status(router.StatusForbidden).SendString("Forbidden")
	}

	targetID, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"errors": "invalid account id",
		})
	}

	payload := LifecycleRequest{}
	// body is optional for approve and reinstate
	_ = ctx.Bind(&payload)

	actor := ActorRef{Type: "user"}
	if session, err := GetRouterSession(ctx, a.Gate.cfg.GetContextKey()); err == nil {
		actor.ID = session.UserID
	}

	profile, err := a.Repo.Profiles().GetByUserID(ctx.Context(), targetID)
	if err != nil {
		if IsRecordNotFound(err) {
			return ctx.Status(fiber.StatusNotFound).SendString("Not Found")
		}
		return a.ErrorHandler(ctx, err)
	}

	result, err := call(actor, profile, payload.Reason)
	if err != nil {
		if goerrors.Is(err, ErrInvalidTransition) {
			return ctx.JSON(fiber.StatusConflict, map[string]any{
				"errors": err.Error(),
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status": result.Profile.ApprovalStatus,
		"no_op":  result.NoOp,
	})
}
