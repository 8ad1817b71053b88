package controller

import (
	"errors"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"unihub/config"
	"unihub/middleware"
	"unihub/models"
	"unihub/utils"
)

const RefreshTokenCookie = "refreshToken"

// AuthController serves account registration and session endpoints.
type AuthController struct {
	DB     *gorm.DB
	Mailer utils.Mailer
	// Now is overridable for OTP expiry checks.
	Now func() time.Time
}

func NewAuthController(db *gorm.DB, mailer utils.Mailer) *AuthController {
	return &AuthController{DB: db, Mailer: mailer, Now: time.Now}
}

type RegisterRequest struct {
	FullName   string `json:"fullName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,mailbox"`
	Password   string `json:"password" validate:"required"`
	USN        string `json:"usn" validate:"required"`
	Semester   string `json:"semester" validate:"required"`
	Department string `json:"department" validate:"required"`
}

type LoginResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (ac *AuthController) Register(c *fiber.Ctx) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}

	req := RegisterRequest{
		FullName:   fields.Trimmed("fullName"),
		Email:      models.NormalizeEmail(fields.Trimmed("email")),
		USN:        models.NormalizeUSN(fields.Trimmed("usn")),
		Semester:   fields.Trimmed("semester"),
		Department: fields.Trimmed("department"),
	}
	req.Password, _ = fields.String("password")

	if req.FullName == "" || req.Email == "" || req.Password == "" || req.USN == "" ||
		req.Semester == "" || req.Department == "" {
		return utils.BadRequest("All fields are required")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return err
	}

	var existing models.User
	err = ac.DB.Where("email = ? OR usn = ?", req.Email, req.USN).First(&existing).Error
	switch {
	case err == nil:
		if existing.Email == req.Email {
			return utils.Conflict("User with this email already exists")
		}
		return utils.Conflict("User with this USN already exists")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	user := models.User{
		FullName:   req.FullName,
		Email:      req.Email,
		USN:        req.USN,
		Semester:   req.Semester,
		Department: req.Department,
		IsActive:   true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return err
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return err
	}
	user.SetVerificationOTP(otp, utils.OTPExpiresAt(ac.Now()))

	if err := ac.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Conflict("User with this email or USN already exists")
		}
		return err
	}

	if err := ac.Mailer.SendVerificationEmail(user.Email, user.FullName, otp); err != nil {
		// Without the code the account can never be verified.
		if derr := ac.DB.Delete(&user).Error; derr != nil {
			utils.LogError("register_rollback", derr, map[string]interface{}{"user_id": user.ID})
		}
		utils.LogError("verification_email", err, map[string]interface{}{"email": user.Email})
		return utils.Internal("Failed to send verification email. Please try again.")
	}

	utils.LogEvent("user_registered", map[string]interface{}{"user_id": user.ID})
	return utils.Respond(c, fiber.StatusCreated,
		fiber.Map{"userId": user.ID, "email": user.Email},
		"User registered successfully! Please check your email for verification OTP.")
}

func (ac *AuthController) VerifyEmail(c *fiber.Ctx) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	email := models.NormalizeEmail(fields.Trimmed("email"))
	otp := fields.Trimmed("otp")
	if email == "" || otp == "" {
		return utils.BadRequest("Email and OTP are required")
	}

	user, err := ac.findByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NotFound("User not found")
	}
	if user.IsEmailVerified {
		return utils.BadRequest("Email is already verified")
	}

	switch err := user.CheckVerificationOTP(otp, ac.Now()); {
	case errors.Is(err, models.ErrNoOTP):
		return utils.BadRequest("No OTP found. Please request a new OTP.")
	case errors.Is(err, models.ErrOTPExpired):
		return utils.BadRequest("OTP has expired. Please request a new OTP.")
	case errors.Is(err, models.ErrOTPMismatch):
		return utils.BadRequest("Invalid OTP")
	}

	user.MarkEmailVerified()
	if err := ac.DB.Model(user).Updates(map[string]interface{}{
		"is_email_verified":      true,
		"email_verification_otp": "",
		"otp_expiry":             nil,
	}).Error; err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, fiber.Map{"email": user.Email},
		"Email verified successfully! You can now login.")
}

func (ac *AuthController) ResendOTP(c *fiber.Ctx) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	email := models.NormalizeEmail(fields.Trimmed("email"))
	if email == "" {
		return utils.BadRequest("Email is required")
	}

	user, err := ac.findByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NotFound("User not found")
	}
	if user.IsEmailVerified {
		return utils.BadRequest("Email is already verified")
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return err
	}
	user.SetVerificationOTP(otp, utils.OTPExpiresAt(ac.Now()))
	if err := ac.DB.Model(user).Updates(map[string]interface{}{
		"email_verification_otp": user.EmailVerificationOTP,
		"otp_expiry":             user.OTPExpiry,
	}).Error; err != nil {
		return err
	}

	if err := ac.Mailer.SendVerificationEmail(user.Email, user.FullName, otp); err != nil {
		utils.LogError("verification_email", err, map[string]interface{}{"email": user.Email})
		return utils.Internal("Failed to send verification email")
	}

	return utils.Respond(c, fiber.StatusOK, fiber.Map{"email": user.Email},
		"OTP sent successfully! Please check your email.")
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	email := models.NormalizeEmail(fields.Trimmed("email"))
	password, _ := fields.String("password")
	if email == "" || password == "" {
		return utils.BadRequest("Email and password are required")
	}

	user, err := ac.findByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NotFound("Invalid email or password")
	}
	if !user.IsEmailVerified {
		return utils.Forbidden("Please verify your email before logging in. Check your email for the OTP.")
	}
	if !user.IsPasswordCorrect(password) {
		return utils.Unauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return utils.Forbidden("Account is not active")
	}

	tokens, err := ac.issueTokens(user)
	if err != nil {
		return err
	}
	setAuthCookies(c, tokens)

	utils.LogEvent("user_login", map[string]interface{}{"user_id": user.ID, "ip": c.IP()})
	return utils.Respond(c, fiber.StatusOK, LoginResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged in successfully")
}

func (ac *AuthController) Logout(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := ac.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("refresh_token", "").Error; err != nil {
		return err
	}

	clearAuthCookies(c)
	return utils.Respond(c, fiber.StatusOK, fiber.Map{}, "User logged out successfully")
}

func (ac *AuthController) ForgotPassword(c *fiber.Ctx) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	email := models.NormalizeEmail(fields.Trimmed("email"))
	if email == "" {
		return utils.BadRequest("Email is required")
	}

	user, err := ac.findByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		// Same answer whether or not the account exists.
		return utils.Respond(c, fiber.StatusOK, fiber.Map{},
			"If the email exists, a password reset OTP has been sent.")
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return err
	}
	user.SetPasswordResetOTP(otp, utils.OTPExpiresAt(ac.Now()))
	if err := ac.saveResetOTP(user); err != nil {
		return err
	}

	if err := ac.Mailer.SendPasswordResetEmail(user.Email, user.FullName, otp); err != nil {
		user.ClearPasswordResetOTP()
		if cerr := ac.saveResetOTP(user); cerr != nil {
			utils.LogError("password_reset_rollback", cerr, map[string]interface{}{"user_id": user.ID})
		}
		utils.LogError("password_reset_email", err, map[string]interface{}{"email": user.Email})
		return utils.Internal("Failed to send password reset email")
	}

	return utils.Respond(c, fiber.StatusOK, fiber.Map{},
		"Password reset OTP sent successfully! Please check your email.")
}

func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	email := models.NormalizeEmail(fields.Trimmed("email"))
	otp := fields.Trimmed("otp")
	newPassword, _ := fields.String("newPassword")
	if email == "" || otp == "" || newPassword == "" {
		return utils.BadRequest("Email, OTP, and new password are required")
	}
	if err := utils.CheckPassword(newPassword); err != nil {
		return err
	}

	user, err := ac.findByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NotFound("User not found")
	}

	switch err := user.CheckPasswordResetOTP(otp, ac.Now()); {
	case errors.Is(err, models.ErrNoOTP):
		return utils.BadRequest("No password reset OTP found. Please request a new one.")
	case errors.Is(err, models.ErrOTPExpired):
		return utils.BadRequest("OTP has expired. Please request a new password reset.")
	case errors.Is(err, models.ErrOTPMismatch):
		return utils.BadRequest("Invalid OTP")
	}

	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	user.ClearPasswordResetOTP()
	user.RefreshToken = ""
	if err := ac.DB.Model(user).Updates(map[string]interface{}{
		"password_hash":         user.PasswordHash,
		"password_reset_otp":    "",
		"password_reset_expiry": nil,
		"refresh_token":         "",
	}).Error; err != nil {
		return err
	}

	utils.LogEvent("password_reset", map[string]interface{}{"user_id": user.ID})
	return utils.Respond(c, fiber.StatusOK, fiber.Map{},
		"Password reset successfully! You can now login with your new password.")
}

// RefreshToken rotates the token pair. Only the most recently issued refresh
// token is accepted.
func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	incoming := c.Cookies(RefreshTokenCookie)
	if incoming == "" {
		fields, err := readFields(c)
		if err != nil {
			return err
		}
		incoming = fields.Trimmed("refreshToken")
	}
	if incoming == "" {
		return utils.Unauthorized("Unauthorized request")
	}

	claims, err := utils.ParseRefreshToken(incoming)
	if err != nil {
		return utils.Unauthorized("Invalid refresh token")
	}

	var user models.User
	if err := ac.DB.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Unauthorized("Invalid refresh token")
		}
		return err
	}
	if user.RefreshToken == "" || incoming != user.RefreshToken {
		return utils.Unauthorized("Refresh token is expired or used")
	}

	tokens, err := ac.issueTokens(&user)
	if err != nil {
		return err
	}
	setAuthCookies(c, tokens)

	return utils.Respond(c, fiber.StatusOK, tokens, "Access token refreshed")
}

func (ac *AuthController) CurrentUser(c *fiber.Ctx) error {
	return utils.Respond(c, fiber.StatusOK, middleware.CurrentUser(c), "User fetched successfully")
}

// issueTokens signs a new pair and stores the refresh token, replacing any
// earlier one.
func (ac *AuthController) issueTokens(user *models.User) (*utils.TokenPair, error) {
	tokens, err := utils.GenerateTokens(user)
	if err != nil {
		return nil, err
	}
	user.RefreshToken = tokens.RefreshToken
	if err := ac.DB.Model(user).Update("refresh_token", tokens.RefreshToken).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (ac *AuthController) saveResetOTP(user *models.User) error {
	return ac.DB.Model(user).Updates(map[string]interface{}{
		"password_reset_otp":    user.PasswordResetOTP,
		"password_reset_expiry": user.PasswordResetExpiry,
	}).Error
}

func (ac *AuthController) findByEmail(email string) (*models.User, error) {
	if checkmail.ValidateFormat(email) != nil {
		return nil, nil
	}
	var user models.User
	if err := ac.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func setAuthCookies(c *fiber.Ctx, tokens *utils.TokenPair) {
	c.Cookie(authCookie(middleware.AccessTokenCookie, tokens.AccessToken, config.AppConfig.AccessTokenExpiry))
	c.Cookie(authCookie(RefreshTokenCookie, tokens.RefreshToken, config.AppConfig.RefreshTokenExpiry))
}

func clearAuthCookies(c *fiber.Ctx) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		cookie := authCookie(name, "", 0)
		cookie.Expires = time.Unix(0, 0)
		cookie.MaxAge = -1
		c.Cookie(cookie)
	}
}

func authCookie(name, value string, ttl time.Duration) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   config.AppConfig.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if config.AppConfig.IsProduction() {
		cookie.SameSite = fiber.CookieSameSiteStrictMode
	}
	if ttl > 0 {
		cookie.Expires = time.Now().Add(ttl)
	}
	return cookie
}
