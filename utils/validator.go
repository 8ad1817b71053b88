package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

var passwordSpecials = regexp.MustCompile(`[@$!%*?&]`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("semester", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= 1 && n <= 8
	})
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return checkmail.ValidateFormat(fl.Field().String()) == nil
	})
	return v
}

// ValidateStruct runs tag validation and returns a BadRequest listing every
// failed field, or nil.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return BadRequest(err.Error())
	}

	var messages []string
	for _, err := range verrs {
		field := lowerFirst(err.Field())
		param := err.Param()

		switch err.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "min":
			if err.Kind().String() == "slice" {
				messages = append(messages, field+" must contain at least "+param+" item(s)")
			} else {
				messages = append(messages, field+" must be at least "+param+" characters")
			}
		case "max":
			messages = append(messages, field+" must be at most "+param+" characters")
		case "email", "mailbox":
			messages = append(messages, field+" must be a valid email")
		case "len":
			messages = append(messages, field+" must be exactly "+param+" characters")
		case "semester":
			messages = append(messages, "Semester must be between 1 and 8")
		case "numeric":
			messages = append(messages, field+" must be numeric")
		default:
			messages = append(messages, field+" is invalid")
		}
	}

	return BadRequest(strings.Join(messages, ", "), messages...)
}

// ValidatePassword returns every strength rule the password breaks.
func ValidatePassword(password string) []string {
	var errs []string
	if len(password) < 8 {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if !strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz") {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !strings.ContainsAny(password, "0123456789") {
		errs = append(errs, "Password must contain at least one number")
	}
	if !passwordSpecials.MatchString(password) {
		errs = append(errs, "Password must contain at least one special character (@$!%*?&)")
	}
	return errs
}

// CheckPassword wraps ValidatePassword into a BadRequest.
func CheckPassword(password string) error {
	errs := ValidatePassword(password)
	if len(errs) == 0 {
		return nil
	}
	return BadRequest("Password requirements not met: "+strings.Join(errs, "; "), errs...)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
