// Package validate runs struct-tag validation for service inputs and reports
// failures as apperr validation errors keyed by JSON field name.
package validate

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/groeigesprek/backend/pkg/apperr"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates s using its `validate` tags.
func Struct(s interface{}) error {
	if err := engine().Struct(s); err != nil {
		return apperr.FromBinding(err)
	}
	return nil
}

// Var validates a single value against tag, reporting failures under field.
func Var(field string, value interface{}, tag string) error {
	if err := engine().Var(value, tag); err != nil {
		e := apperr.FromBinding(err)
		for i := range e.Fields {
			e.Fields[i].Field = field
		}
		return e
	}
	return nil
}
