package auth

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type AuthControllerRoutes struct {
	Register           string
	VerifyEmail        string
	ResendVerification string
	Login              string
	Logout             string
	RefreshToken       string
	ChangePassword     string
	ForgotPassword     string
	ResetPassword      string
	Update             string
	Delete             string
	Me                 string
	Google             string
	Msg                string
}

// DefaultAuthControllerRoutes are relative to the group the controller is
// mounted on, usually /api/v1/users.
func DefaultAuthControllerRoutes() *AuthControllerRoutes {
	return &AuthControllerRoutes{
		Register:           "/register",
		VerifyEmail:        "/verify-email",
		ResendVerification: "/resend-verification",
		Login:              "/login",
		Logout:             "/logout",
		RefreshToken:       "/refresh-token",
		ChangePassword:     "/change-password",
		ForgotPassword:     "/forgot-password",
		ResetPassword:      "/reset-password",
		Update:             "/update",
		Delete:             "/delete",
		Me:                 "/me",
		Google:             "/google",
		Msg:                "/msg",
	}
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Service      AccountManager
	Tokens       AccessTokenValidator
	Cookies      CookieConfig
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController)

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(a *AuthController) {
		if logger != nil {
			a.Logger = logger
		}
	}
}

// WithCookieConfig overrides the session cookie attributes
func WithCookieConfig(cfg CookieConfig) AuthControllerOption {
	return func(a *AuthController) {
		a.Cookies = cfg
	}
}

// WithControllerRoutes overrides the route paths
func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(a *AuthController) {
		if routes != nil {
			a.Routes = routes
		}
	}
}

// WithErrorHandler replaces the JSON envelope error renderer
func WithErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(a *AuthController) {
		if handler != nil {
			a.ErrorHandler = handler
		}
	}
}

// WithDebug dumps request outcomes to stdout
func WithDebug(debug bool) AuthControllerOption {
	return func(a *AuthController) {
		a.Debug = debug
	}
}

func NewAuthController(service AccountManager, tokens AccessTokenValidator, opts ...AuthControllerOption) *AuthController {
	a := &AuthController{
		Logger:  defLogger{},
		Service: service,
		Tokens:  tokens,
		Cookies: DefaultCookieConfig(),
		Routes:  DefaultAuthControllerRoutes(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.ErrorHandler == nil {
		a.ErrorHandler = ErrorHandler(a.Logger)
	}
	return a
}

// RegisterAuthRoutes mounts the account routes on r and returns the
// controller. Every route renders its errors through the controller
// ErrorHandler; guarded routes also require a valid access token.
func RegisterAuthRoutes[T any](r router.Router[T], service AccountManager, tokens AccessTokenValidator, opts ...AuthControllerOption) *AuthController {
	a := NewAuthController(service, tokens, opts...)

	errs := ErrorMiddleware(a.Logger, a.ErrorHandler)
	guard := NewAccessGuard(a.Tokens)

	r.Post(a.Routes.Register, a.Register, errs).SetName("auth.register")
	r.Post(fmt.Sprintf("%s/:token", a.Routes.VerifyEmail), a.VerifyEmail, errs).SetName("auth.verify-email")
	r.Post(a.Routes.ResendVerification, a.ResendVerification, errs).SetName("auth.resend-verification")
	r.Post(a.Routes.Login, a.Login, errs).SetName("auth.login")
	r.Post(a.Routes.RefreshToken, a.RefreshToken, errs).SetName("auth.refresh-token")
	r.Post(a.Routes.ForgotPassword, a.ForgotPassword, errs).SetName("auth.forgot-password")
	r.Post(fmt.Sprintf("%s/:token", a.Routes.ResetPassword), a.ResetPassword, errs).SetName("auth.reset-password")
	r.Post(a.Routes.Google, a.GoogleLogin, errs).SetName("auth.google")
	r.Get(a.Routes.Msg, a.Msg, errs).SetName("auth.msg")

	r.Post(a.Routes.Logout, a.Logout, errs, guard).SetName("auth.logout")
	r.Put(a.Routes.ChangePassword, a.ChangePassword, errs, guard).SetName("auth.change-password")
	r.Patch(a.Routes.Update, a.UpdateAccount, errs, guard).SetName("auth.update")
	r.Delete(a.Routes.Delete, a.DeleteAccount, errs, guard).SetName("auth.delete")
	r.Get(a.Routes.Me, a.CurrentAccount, errs, guard).SetName("auth.me")

	return a
}

type sessionPayload struct {
	User         *PublicUser `json:"user"`
	AccessToken  string      `json:"accessToken,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
}

func newSessionPayload(res *SessionResult) sessionPayload {
	payload := sessionPayload{User: res.User}
	if res.Tokens != nil {
		payload.AccessToken = res.Tokens.AccessToken
		payload.RefreshToken = res.Tokens.RefreshToken
	}
	return payload
}

func (a *AuthController) parse(c router.Context, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.Bind(out); err != nil {
		a.Logger.Debug("unable to parse request body", "path", c.Path(), "error", err)
		return ErrUnableToParseData
	}
	return nil
}

func (a *AuthController) Register(c router.Context) error {
	payload := RegisterUserMessage{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}

	res, err := a.Service.Register(c.Context(), payload)
	if err != nil {
		return err
	}

	message := "User registered successfully"
	if !res.User.IsEmailVerified {
		message = "User registered successfully. Please verify your email"
	}
	if res.HasSession() {
		SetSessionCookies(c, a.Cookies, res.Tokens)
	}

	a.dump(res.User)
	return sendResponse(c, router.StatusCreated, newSessionPayload(res), message)
}

func (a *AuthController) VerifyEmail(c router.Context) error {
	user, err := a.Service.VerifyEmail(c.Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return sendResponse(c, router.StatusOK, user, "Email verified successfully")
}

func (a *AuthController) ResendVerification(c router.Context) error {
	payload := ResendVerificationMessage{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}

	if err := a.Service.ResendVerification(c.Context(), payload); err != nil {
		return err
	}
	return sendResponse(c, router.StatusOK, nil, "If the account needs verification, an email has been sent")
}

func (a *AuthController) Login(c router.Context) error {
	payload := LoginMessage{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}

	res, err := a.Service.Login(c.Context(), payload)
	if err != nil {
		return err
	}

	SetSessionCookies(c, a.Cookies, res.Tokens)
	return sendResponse(c, router.StatusOK, newSessionPayload(res), "User logged in successfully")
}

func (a *AuthController) Logout(c router.Context) error {
	accountID, err := CurrentAccountID(c)
	if err != nil {
		return err
	}

	if err := a.Service.Logout(c.Context(), accountID); err != nil {
		return err
	}

	ClearSessionCookies(c, a.Cookies)
	return sendResponse(c, router.StatusOK, nil, "User logged out successfully")
}

type refreshPayload struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *AuthController) RefreshToken(c router.Context) error {
	token := c.Cookies(RefreshTokenCookie)
	if token == "" {
		payload := refreshPayload{}
		if err := a.parse(c, &payload); err != nil {
			return err
		}
		token = payload.RefreshToken
	}

	res, err := a.Service.RefreshSession(c.Context(), token)
	if err != nil {
		return err
	}

	SetSessionCookies(c, a.Cookies, res.Tokens)
	return sendResponse(c, router.StatusOK, newSessionPayload(res), "Access token refreshed")
}

func (a *AuthController) ChangePassword(c router.Context) error {
	accountID, err := CurrentAccountID(c)
	if err != nil {
		return err
	}

	payload := ChangePasswordMessage{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}
	payload.AccountID = accountID

	if err := a.Service.ChangePassword(c.Context(), payload); err != nil {
		return err
	}
	return sendResponse(c, router.StatusOK, nil, "Password changed successfully")
}

func (a *AuthController) ForgotPassword(c router.Context) error {
	payload := ForgotPasswordMessage{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}

	if err := a.Service.ForgotPassword(c.Context(), payload); err != nil {
		return err
	}
	return sendResponse(c, router.StatusOK, nil, "If an account exists for this email, a reset link has been sent")
}

func (a *AuthController) ResetPassword(c router.Context) error {
	payload := ResetPasswordMessage{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}
	payload.Token = c.Param("token")

	if err := a.Service.ResetPassword(c.Context(), payload); err != nil {
		return err
	}

	ClearSessionCookies(c, a.Cookies)
	return sendResponse(c, router.StatusOK, nil, "Password reset successfully")
}

func (a *AuthController) UpdateAccount(c router.Context) error {
	accountID, err := CurrentAccountID(c)
	if err != nil {
		return err
	}

	payload := UpdateAccountMessage{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}
	payload.AccountID = accountID

	user, err := a.Service.UpdateAccountDetails(c.Context(), payload)
	if err != nil {
		return err
	}
	return sendResponse(c, router.StatusOK, user, "Account details updated successfully")
}

func (a *AuthController) DeleteAccount(c router.Context) error {
	accountID, err := CurrentAccountID(c)
	if err != nil {
		return err
	}

	if err := a.Service.DeleteAccount(c.Context(), accountID); err != nil {
		return err
	}

	ClearSessionCookies(c, a.Cookies)
	return sendResponse(c, router.StatusOK, nil, "Account deleted successfully")
}

func (a *AuthController) CurrentAccount(c router.Context) error {
	accountID, err := CurrentAccountID(c)
	if err != nil {
		return err
	}

	user, err := a.Service.CurrentAccount(c.Context(), accountID)
	if err != nil {
		return err
	}
	return sendResponse(c, router.StatusOK, user, "Current user fetched successfully")
}

type googlePayload struct {
	IDToken    string `json:"idToken"`
	Credential string `json:"credential"`
}

func (a *AuthController) GoogleLogin(c router.Context) error {
	payload := googlePayload{}
	if err := a.parse(c, &payload); err != nil {
		return err
	}

	token := strings.TrimSpace(payload.IDToken)
	if token == "" {
		// Google Identity Services posts the ID token as "credential"
		token = strings.TrimSpace(payload.Credential)
	}

	res, err := a.Service.GoogleLogin(c.Context(), token)
	if err != nil {
		return err
	}

	SetSessionCookies(c, a.Cookies, res.Tokens)
	return sendResponse(c, router.StatusOK, newSessionPayload(res), "User logged in with Google successfully")
}

func (a *AuthController) Msg(c router.Context) error {
	return sendResponse(c, router.StatusOK, map[string]any{"status": "ok"}, "Auth service is running")
}

func (a *AuthController) dump(v any) {
	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(v))
	}
}
