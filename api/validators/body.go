package validators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

// MaxBodyBytes caps an action request body.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// EnvelopeHead is the part of an action request shared by every action.
type EnvelopeHead struct {
	Action string `json:"action" validate:"required,max=64"`
	Token  string `json:"token" validate:"max=256"`
}

// ReadEnvelope reads the request body once and decodes its head. The raw body is returned
// so the action handler can decode its own fields from it.
func ReadEnvelope(r *http.Request) (EnvelopeHead, []byte, error) {
	var head EnvelopeHead
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return head, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	if len(raw) > MaxBodyBytes {
		return head, nil, pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return head, nil, pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	if err := DecodeJSON(raw, &head); err != nil {
		return head, nil, err
	}
	head.Action = SanitizeString(head.Action, 0)
	head.Token = SanitizeString(head.Token, 0)
	return head, raw, nil
}

// DecodeJSON decodes raw into dest and validates it. Unknown fields are allowed because
// every action shares the envelope with its own fields.
func DecodeJSON(raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}
