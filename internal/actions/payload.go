package actions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decode reads the handler's fields out of the envelope and validates them. Fields owned
// by the envelope itself (action, token) are ignored.
func decode(req Request, dest any) error {
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
				WithDetails(map[string]any{"error": err.Error()})
		}
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *pkgerrors.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	fields := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		path := fieldPath(fieldErr)
		details[path] = validationMessage(fieldErr)
		fields = append(fields, path)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "missing or invalid fields: "+strings.Join(fields, ", ")).
		WithDetails(details)
}

// fieldPath drops the root struct name so nested fields read as orderInput.orderNumber.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a uuid"
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	}
	return "is invalid"
}

// parseID parses an id field. An empty value yields uuid.Nil so the service can order its
// own required-field check after authorization; only a malformed id fails here.
func parseID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a uuid")
	}
	return id, nil
}

// parseOptionalID is parseID for nullable references.
func parseOptionalID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := parseID(field, *raw)
	if err != nil || id == uuid.Nil {
		return nil, err
	}
	return &id, nil
}
