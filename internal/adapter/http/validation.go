package http

import (
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer. Reason and MaxEligibleAmount
// are only set for eligibility refusals.
type ErrorResponse struct {
	Error             string       `json:"error"`
	Details           []FieldError `json:"details,omitempty"`
	Reason            string       `json:"reason,omitempty"`
	MaxEligibleAmount *int64       `json:"max_eligible_amount,omitempty"`
}

var reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// report fields by their json name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// member / loan ids = 32-char lowercase hex
	_ = v.RegisterValidation("hex32", func(fl validator.FieldLevel) bool {
		return reHex32.MatchString(fl.Field().String())
	})
	// interest rate is stored as decimal(6,3)
	_ = v.RegisterValidation("dec3", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return math.Abs(f-(math.Round(f*1000)/1000)) < 1e-9
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "hex32":
			out = append(out, FieldError{Field: field, Message: "must be 32-char lowercase hex"})
		case "dec3":
			out = append(out, FieldError{Field: field, Message: "must have at most 3 decimal places"})
		case "oneof":
			out = append(out, FieldError{Field: field, Message: "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		case "max":
			out = append(out, FieldError{Field: field, Message: "must be at most " + e.Param() + " long"})
		case "nefield":
			out = append(out, FieldError{Field: field, Message: "must differ from " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
