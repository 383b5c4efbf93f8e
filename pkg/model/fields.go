package model

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/aperture-array/obsdb/pkg/errorx"
)

// JSONDict - a string-keyed document stored as JSON text in a single
// column. A nil map stores SQL NULL.
type JSONDict map[string]any

// Value - marshal for storage.
func (d JSONDict) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}

	data, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, errorx.NewValidationErrorWrapper(err, "could not encode JSON column")
	}

	return string(data), nil
}

// Scan - unmarshal from a stored column. Malformed stored JSON is a
// ValidationError: the database holds a value that fails its format.
func (d *JSONDict) Scan(src any) error {
	if src == nil {
		*d = nil

		return nil
	}

	var data []byte

	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errorx.NewValidationError("cannot scan %T into a JSON column", src)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return errorx.NewValidationErrorWrapper(err, "malformed JSON in database column")
	}

	*d = out

	return nil
}

// StringEnum - a closed set of allowed string values for one column.
type StringEnum struct {
	allowed []string
}

// NewStringEnum - StringEnum constructor.
func NewStringEnum(allowed ...string) StringEnum {
	return StringEnum{allowed: allowed}
}

// Values - the allowed set, in declaration order.
func (e StringEnum) Values() []string {
	return append([]string(nil), e.allowed...)
}

// Check - ValidationError when v is outside the allowed set.
func (e StringEnum) Check(v string) error {
	for _, a := range e.allowed {
		if v == a {
			return nil
		}
	}

	return errorx.NewValidationError("value %q not one of %s", v, strings.Join(e.allowed, ", "))
}

// ColumnDDL - the column type to declare for this enum. MySQL gets a native
// enum; every other backend stores plain text and relies on Check.
func (e StringEnum) ColumnDDL(backend string) string {
	if backend == "mysql" {
		quoted := make([]string, len(e.allowed))
		for i, a := range e.allowed {
			quoted[i] = "'" + a + "'"
		}

		return fmt.Sprintf("ENUM(%s)", strings.Join(quoted, ","))
	}

	return "TEXT"
}
