package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("koanf")
		})
	})
	return validate
}

// Validate reports out-of-range settings. An empty result means the
// configuration is usable.
func (c *Config) Validate() []string {
	var issues []string

	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			issues = append(issues, describe(fe))
		}
	}

	if c.MinAnswerWords > c.MaxAnswerWords {
		issues = append(issues, fmt.Sprintf("min_answer_words (%d) must not exceed max_answer_words (%d)", c.MinAnswerWords, c.MaxAnswerWords))
	}
	return issues
}

func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s needs at least %s entries", field, param)
		}
		return fmt.Sprintf("%s must be at least %s (got %v)", field, param, fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s (got %v)", field, param, fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be less than %s (got %v)", field, param, fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got %v)", field, param, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s (got %q)", field, strings.ReplaceAll(param, " ", ", "), fe.Value())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
