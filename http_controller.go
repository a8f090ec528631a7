package auth

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// LogoFormField is the multipart field carrying vendor logos
const LogoFormField = "logoFiles"

// RegisterAuthRoutes mounts the auth endpoints on router. Mount the social
// controller after these so its /:provider routes do not shadow them.
func RegisterAuthRoutes(router fiber.Router, controller *AuthController) {
	protect := controller.Auther.ProtectedRoute()

	router.Post(controller.Routes.Register, controller.Register).Name("register.post")
	router.Post(controller.Routes.VerifyEmail, controller.VerifyEmail).Name("verify-email.post")
	router.Get(controller.Routes.VerificationEmail+"/:email", protect, controller.SendVerificationEmail).
		Name("verification-email.get")
	router.Post(controller.Routes.SignIn, controller.SignIn).Name("sign-in.post")
	router.Get(controller.Routes.RefreshToken, controller.RefreshToken).Name("refresh-token.get")
	router.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).Name("forgot-password.post")
	router.Post(controller.Routes.ResetPassword, controller.ResetPassword).Name("reset-password.post")
	router.Get(controller.Routes.SignOut, protect, controller.SignOut).Name("sign-out.get")
	router.Post(controller.Routes.ApplyForVendor, protect, controller.ApplyForVendor).Name("apply-for-vendor.post")
	router.Patch(controller.Routes.ReviewVendor+"/:id/status", controller.Auther.RequireRole(RoleAdmin), controller.ReviewVendorApplication).
		Name("vendor-applications.status.patch")
}

type AuthControllerRoutes struct {
	Register          string
	VerifyEmail       string
	VerificationEmail string
	SignIn            string
	RefreshToken      string
	ForgotPassword    string
	ResetPassword     string
	SignOut           string
	ApplyForVendor    string
	ReviewVendor      string
}

type AuthController struct {
	Debug   bool
	Logger  Logger
	Service *Service
	Auther  *RouteAuthenticator
	Routes  *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug dumps payloads to the log
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(service *Service, auther *RouteAuthenticator, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:  defLogger{},
		Service: service,
		Auther:  auther,
		Routes: &AuthControllerRoutes{
			Register:          "/register",
			VerifyEmail:       "/verify-email",
			VerificationEmail: "/verification-email",
			SignIn:            "/sign-in",
			RefreshToken:      "/refresh-token",
			ForgotPassword:    "/forgot-password",
			ResetPassword:     "/reset-password",
			SignOut:           "/sign-out",
			ApplyForVendor:    "/apply-for-vendor",
			ReviewVendor:      "/vendor-applications",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

func authData(result *AuthResult) fiber.Map {
	return fiber.Map{
		"user":        result.User.Public(),
		"accessToken": result.AccessToken,
	}
}

// RegisterPayload is the signup body
type RegisterPayload struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 100), is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.Role, validation.Length(0, 20)),
	)
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := new(RegisterPayload)
	if err := a.bind(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	result, err := a.Service.Register(c.UserContext(), ScopeFromFiber(c), RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	if err := a.Auther.SetCredentials(c, result); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.Status(http.StatusCreated).JSON(Response{
		Message: "User registered successfully",
		Data:    authData(result),
	})
}

// VerifyEmailPayload carries the emailed token
type VerifyEmailPayload struct {
	Token string `json:"emailVerificationToken" form:"emailVerificationToken"`
}

// Validate will validate the payload
func (r VerifyEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) VerifyEmail(c *fiber.Ctx) error {
	payload := new(VerifyEmailPayload)
	if err := a.bind(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	user, err := a.Service.VerifyEmail(c.UserContext(), payload.Token)
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(Response{
		Message: "Email verified successfully",
		Data:    fiber.Map{"user": user.Public()},
	})
}

func (a *AuthController) SendVerificationEmail(c *fiber.Ctx) error {
	email := NormalizeEmail(c.Params("email"))
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return a.Auther.ErrorHandler(c, goerrors.FromOzzoValidation(err, "invalid email"))
	}

	if err := a.Service.SendVerificationEmail(c.UserContext(), email); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(Response{Message: "Verification email sent"})
}

// SignInPayload is the password login body
type SignInPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r SignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) SignIn(c *fiber.Ctx) error {
	payload := new(SignInPayload)
	if err := a.bind(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	result, err := a.Service.Signin(c.UserContext(), ScopeFromFiber(c), payload.Email, payload.Password)
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	if err := a.Auther.SetCredentials(c, result); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(Response{
		Message: "User logged in successfully",
		Data:    authData(result),
	})
}

func (a *AuthController) RefreshToken(c *fiber.Ctx) error {
	result, err := a.Service.Refresh(c.UserContext(), ScopeFromFiber(c))
	if err != nil {
		if IsRefreshError(err) {
			return a.Auther.SignInAgain(c, err)
		}
		return a.Auther.ErrorHandler(c, err)
	}

	if err := a.Auther.SetCredentials(c, result); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(Response{
		Message: "Token refreshed successfully",
		Data:    authData(result),
	})
}

// ForgotPasswordPayload holds the account email
type ForgotPasswordPayload struct {
	Email string `json:"email" form:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
	)
}

func (a *AuthController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(ForgotPasswordPayload)
	if err := a.bind(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	if err := a.Service.ForgotPassword(c.UserContext(), payload.Email); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(Response{
		Message: "If an account exists for that email a reset link has been sent",
	})
}

// ResetPasswordPayload holds the reset token and the new password.
// ConfirmPassword is optional; when sent it must repeat NewPassword.
type ResetPasswordPayload struct {
	Token           string `json:"token" form:"token"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, is.UUID),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.ConfirmPassword,
			validation.When(r.ConfirmPassword != "", validation.By(ValidateStringEquals(r.NewPassword))),
		),
	)
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)
	if err := a.bind(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	if err := a.Service.ResetPassword(c.UserContext(), payload.Token, payload.NewPassword); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(Response{Message: "Password reset successfully"})
}

func (a *AuthController) SignOut(c *fiber.Ctx) error {
	if err := a.Service.Signout(c.UserContext(), ScopeFromFiber(c)); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	a.Auther.ClearCredentials(c)
	return c.JSON(Response{Message: "Logged out successfully"})
}

// VendorApplicationPayload is the multipart vendor onboarding form
type VendorApplicationPayload struct {
	StoreName       string   `form:"storeName" json:"storeName"`
	Description     string   `form:"description" json:"description"`
	Contact         string   `form:"contact" json:"contact"`
	TaxID           string   `form:"taxId" json:"taxId"`
	BusinessLicense string   `form:"businessLicense" json:"businessLicense"`
	Documents       []string `form:"documents" json:"documents"`
}

// Validate will validate the payload
func (r VendorApplicationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StoreName, validation.Required, validation.Length(2, 120)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Contact, validation.Length(0, 200)),
		validation.Field(&r.Documents, validation.Each(is.URL)),
	)
}

func (a *AuthController) ApplyForVendor(c *fiber.Ctx) error {
	payload := new(VendorApplicationPayload)
	if err := a.bind(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		headers = form.File[LogoFormField]
	}
	if len(headers) > MaxVendorLogos {
		return a.Auther.ErrorHandler(c, ErrTooManyFiles.Clone().
			WithMetadata(map[string]any{"max": MaxVendorLogos, "received": len(headers)}))
	}

	logos, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	app, err := a.Service.ApplyForVendor(c.UserContext(), ScopeFromFiber(c), VendorApplicationInput{
		StoreName:       payload.StoreName,
		Description:     payload.Description,
		Contact:         payload.Contact,
		TaxID:           payload.TaxID,
		BusinessLicense: payload.BusinessLicense,
		Documents:       payload.Documents,
	}, logos)
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.Status(http.StatusCreated).JSON(Response{
		Message: "Vendor application submitted successfully",
		Data:    fiber.Map{"vendor": app},
	})
}

type ReviewPayload struct {
	Status string `json:"status" form:"status"`
	Reason string `json:"reason" form:"reason"`
}

// Validate will validate the payload
func (r ReviewPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required,
			validation.In(string(VendorPending), string(VendorApproved), string(VendorRejected))),
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

func (a *AuthController) ReviewVendorApplication(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return a.Auther.ErrorHandler(c, ErrApplicationNotFound)
	}

	payload := new(ReviewPayload)
	if err := a.bind(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	app, err := a.Service.ReviewVendorApplication(c.UserContext(), ScopeFromFiber(c), id,
		VendorStatus(payload.Status), payload.Reason)
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(Response{
		Message: "Vendor application updated",
		Data:    fiber.Map{"vendor": app},
	})
}

func openUploads(headers []*multipart.FileHeader) ([]Upload, func(), error) {
	closers := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}

	uploads := make([]Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, closeAll, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read uploaded file").
				WithMetadata(map[string]any{"filename": h.Filename})
		}
		closers = append(closers, f)
		uploads = append(uploads, Upload{
			Filename:    h.Filename,
			ContentType: h.Header.Get(fiber.HeaderContentType),
			Size:        h.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

type validatable interface {
	Validate() error
}

func (a *AuthController) bind(c *fiber.Ctx, payload validatable) error {
	if err := c.BodyParser(payload); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if a.Debug {
		a.Logger.Debug("payload %s", print.MaybePrettyJSON(redact(payload)))
	}

	if err := payload.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid request payload").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// redact drops password fields before debug logging
func redact(payload any) any {
	switch p := payload.(type) {
	case *RegisterPayload:
		cp := *p
		cp.Password = strings.Repeat("*", len(cp.Password))
		return cp
	case *SignInPayload:
		cp := *p
		cp.Password = strings.Repeat("*", len(cp.Password))
		return cp
	case *ResetPasswordPayload:
		cp := *p
		cp.NewPassword = strings.Repeat("*", len(cp.NewPassword))
		return cp
	}
	return payload
}

// ValidateStringEquals checks a confirmation field against its original
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("passwords do not match")
		}
		return nil
	}
}
