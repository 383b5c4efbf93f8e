//nolint:gochecknoglobals
package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator - Validator type.
type Validator struct {
	validate *validator.Validate
}

var validatorInstance *Validator

// NewValidator - Create a new Validator.
func NewValidator() *Validator {
	if validatorInstance == nil {
		v := validator.New()

		// Failures name rc-file keys, not Go struct fields.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}

			return name
		})

		validatorInstance = &Validator{validate: v}
	}

	return validatorInstance
}

// ValidateStruct - apply tag validation, returning one entry per failed field.
func (v *Validator) ValidateStruct(str interface{}) []*FieldError {
	var fieldErrors []*FieldError

	err := v.validate.Struct(str)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, err := range validationErrors {
				var element FieldError
				element.FailedField = err.StructNamespace()
				element.Tag = err.Tag()
				element.Value = err.Param()
				fieldErrors = append(fieldErrors, &element)
			}
		}
	}

	return fieldErrors
}
