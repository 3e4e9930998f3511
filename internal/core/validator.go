package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"penpal/internal/delay"
	"penpal/internal/types"
)

// ValidationError describes one failed field rule.
type ValidationError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Validator wraps go-playground/validator with the service's custom tags:
//
//   - delay_mode: empty or a mode accepted by delay.ParseMode
//   - country:    a non-blank country name of at most 100 characters
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags. Field
// names in errors use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("delay_mode", validateDelayMode)
	_ = v.RegisterValidation("country", validateCountry)

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns a validation AppError listing every
// failed field under details.validation_errors.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("struct validation misconfigured", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	out := make([]ValidationError, 0, len(verrs))
	code := types.ErrCodeValidationMissingField
	for i, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		if i == 0 && fe.Tag() == "delay_mode" {
			code = types.ErrCodeValidationInvalidMode
		}
	}
	return types.NewAppErrorWithDetails(code, "request validation failed: "+out[0].Field, err,
		map[string]any{"validation_errors": out})
}

func validateDelayMode(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := delay.ParseMode(s)
	return err == nil
}

func validateCountry(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return s != "" && len(s) <= 100
}
