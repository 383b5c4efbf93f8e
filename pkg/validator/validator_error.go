package validator

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/aperture-array/obsdb/pkg/logx"
)

// StructError - aggregate of the tag-validation failures for one struct.
type StructError struct {
	errors []*FieldError
}

// FieldError - one failed validation tag.
type FieldError struct {
	FailedField string
	Tag         string
	Value       string
}

// NewStructError - StructError constructor.
func NewStructError(errors []*FieldError) *StructError {
	return &StructError{errors: errors}
}

func (v *StructError) Error() string {
	data, err := json.Marshal(v.errors)
	if err != nil {
		logx.GetLogger().LogError(context.TODO(), "marshalling validation failures to JSON", err)
		return ""
	}

	return string(data)
}

// GetErrorsDetails - return the per-field failures.
func (v *StructError) GetErrorsDetails() []*FieldError {
	return v.errors
}
