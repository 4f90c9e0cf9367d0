package httpapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/park285/chess-insight/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// bind parses a JSON body into dst and validates it. An empty body leaves
// dst untouched when allowEmpty is set.
func bind(c *fiber.Ctx, dst any, allowEmpty bool) error {
	if len(c.Body()) == 0 {
		if !allowEmpty {
			return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
		}
	} else if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "min", "max":
			bound := "at least"
			if fe.Tag() == "max" {
				bound = "at most"
			}
			if fe.Kind() == reflect.String {
				parts = append(parts, fmt.Sprintf("%s must be %s %s characters", fe.Field(), bound, fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s must be %s %s", fe.Field(), bound, fe.Param()))
			}
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
