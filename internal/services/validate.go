package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"chat-relay-backend/internal/models"
)

// Violation reasons, reported to clients as the error "type".
const (
	ReasonMissing     = "missing"
	ReasonInvalid     = "value_error"
	ReasonJSONInvalid = "json_invalid"
	ReasonType        = "type_error"
)

// FieldViolation is one rejected field. Field is the dotted JSON path, empty
// when the body as a whole is unusable.
type FieldViolation struct {
	Field   string
	Reason  string
	Message string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}

// ValidateChatRequest checks the required fields of a chat request.
func ValidateChatRequest(req models.ChatRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: []FieldViolation{{Reason: ReasonInvalid, Message: err.Error()}}}
	}

	violations := make([]FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, toViolation(fe))
	}
	return &ValidationError{Fields: violations}
}

func toViolation(fe validator.FieldError) FieldViolation {
	// Namespace is "ChatRequest.history[0].role"; drop the struct name.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required", "notblank":
		return FieldViolation{Field: field, Reason: ReasonMissing, Message: "Field required"}
	case "oneof":
		return FieldViolation{Field: field, Reason: ReasonInvalid, Message: "Input should be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")}
	case "gte":
		return FieldViolation{Field: field, Reason: ReasonInvalid, Message: "Input should be greater than or equal to " + fe.Param()}
	case "lte":
		return FieldViolation{Field: field, Reason: ReasonInvalid, Message: "Input should be less than or equal to " + fe.Param()}
	default:
		return FieldViolation{Field: field, Reason: ReasonInvalid, Message: fmt.Sprintf("Failed %q validation", fe.Tag())}
	}
}
