package validator

import (
	"errors"
	"fmt"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// LedgerValidator validates inbound booking and tokenisation payloads.
type LedgerValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLedgerValidator(log *logger.Logger) *LedgerValidator {
	v := validator.New()

	if err := v.RegisterValidation("bps", validateBps); err != nil {
		log.Fatal("Failed to register 'bps' validator", "error", err)
	}
	if err := v.RegisterValidation("accrual_period", validateAccrualPeriod); err != nil {
		log.Fatal("Failed to register 'accrual_period' validator", "error", err)
	}

	log.Info("Ledger validator initialized successfully")

	return &LedgerValidator{
		validate: v,
		logger:   log,
	}
}

// validateBps accepts basis points within [0, 10000].
func validateBps(fl validator.FieldLevel) bool {
	bps := fl.Field().Int()
	return bps >= 0 && bps <= 10000
}

func validateAccrualPeriod(fl validator.FieldLevel) bool {
	switch model.AccrualPeriod(fl.Field().String()) {
	case model.PeriodNone, model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly:
		return true
	}
	return false
}

func (v *LedgerValidator) ValidateRequest(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !req.EndTime.After(req.StartTime) {
		return ValidationErrors{
			ValidationError{
				Field:   "EndTime",
				Message: "end_time must be after start_time",
			},
		}
	}

	return nil
}

func (v *LedgerValidator) ValidateProposal(proposal *model.TokenisationProposal) error {
	if err := v.validate.Struct(proposal); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *LedgerValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "bps":
			message = fmt.Sprintf("%s must be basis points within [0, 10000]", err.Field())
		case "accrual_period":
			message = fmt.Sprintf("%s must be one of: none, daily, weekly, monthly", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
