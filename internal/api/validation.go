package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by JSON name so error keys match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}()

// ruleMessages phrases each validator tag; %s is the tag parameter.
var ruleMessages = map[string]string{
	"required": "is required",
	"max":      "must be at most %s characters",
	"min":      "must be at least %s characters",
	"lte":      "must be at most %s",
	"gte":      "must be at least %s",
	"oneof":    "must be one of: %s",
}

// Validate checks s against its validate tags. It returns nil when s is valid,
// otherwise a message per failing field keyed by JSON path (e.g. "gps.lat").
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(failed))
	for _, fe := range failed {
		// Namespace starts with the struct type name
		_, path, found := strings.Cut(fe.Namespace(), ".")
		if !found {
			path = fe.Field()
		}
		out[path] = describeRule(fe)
	}
	return out
}

func describeRule(fe validator.FieldError) string {
	format, ok := ruleMessages[fe.Tag()]
	if !ok {
		return "failed " + fe.Tag() + " validation"
	}
	if !strings.Contains(format, "%s") {
		return format
	}
	return fmt.Sprintf(format, fe.Param())
}
