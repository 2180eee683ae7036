package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"

    "github.com/iliyamo/auth-service/internal/service"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
    v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
    v := validator.New(validator.WithRequiredStructEnabled())
    // Report JSON field names rather than Go field names.
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" || name == "" {
            return f.Name
        }
        return name
    })
    return &RequestValidator{v: v}
}

// Validate implements echo.Validator.  Failures wrap service.ErrValidation.
func (rv *RequestValidator) Validate(i any) error {
    err := rv.v.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return err
    }
    msgs := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        msgs = append(msgs, describe(fe))
    }
    return fmt.Errorf("%w: %s", service.ErrValidation, strings.Join(msgs, ". "))
}

func describe(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return "please provide your " + fe.Field()
    case "email":
        return fe.Field() + " must be a valid email"
    case "min":
        return fmt.Sprintf("%s must have at least %s characters", fe.Field(), fe.Param())
    }
    return fe.Field() + " is invalid"
}
