package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/musayazlik/postify/internal/service"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// RequestValidator validates request DTOs and reports failures keyed by
// their JSON field names.
type RequestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewRequestValidator() (*RequestValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		return nil, err
	}
	// eqfield is only used for confirmation fields, reported on the confirmed field.
	err := validate.RegisterTranslation("eqfield", translator,
		func(t ut.Translator) error {
			return t.Add("eqfield", "The {0} confirmation does not match.", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			message, _ := t.T("eqfield", fe.Field())
			return message
		},
	)
	if err != nil {
		return nil, err
	}
	return &RequestValidator{validate: validate, translator: translator}, nil
}

func (v *RequestValidator) Validate(payload any) error {
	if v == nil || v.validate == nil {
		return nil
	}
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	validationErr := &service.ValidationError{}
	for _, fieldErr := range fieldErrors {
		validationErr.Add(fieldErr.Field(), fieldErr.Translate(v.translator))
	}
	return validationErr
}
