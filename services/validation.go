package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate shares the gin "binding" tags so requests built outside HTTP
// handlers are held to the same rules.
var validate = NewValidator()

// NewValidator returns a validator reading `binding` tags and reporting
// fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName names struct fields after their json tag.
func JSONFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func validateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return ErrValidation.with(ValidationMessage(err), err)
	}
	return nil
}

// ValidationMessage renders validator errors as one client-facing sentence.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldPath(fe)+" "+describeTag(fe))
	}
	return strings.Join(parts, "; ")
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "hexcolor":
		return "must be a hex color such as #ff0000"
	default:
		return "is invalid"
	}
}
