package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/normalize"
)

var validate = newValidator()

// newValidator returns a validator that reports fields by their json name and
// knows the document formats used by the ordering flow.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "cpf", func(fl validator.FieldLevel) bool {
		return normalize.ValidCPF(fl.Field().String())
	})
	mustRegister(v, "cep", func(fl validator.FieldLevel) bool {
		return normalize.ValidZipCode(fl.Field().String())
	})
	mustRegister(v, "ymd", func(fl validator.FieldLevel) bool {
		_, ok := normalize.Date(fl.Field().String())
		return ok
	})
	mustRegister(v, "shirtsize", func(fl validator.FieldLevel) bool {
		return models.ShirtSize(fl.Field().String()).Valid()
	})
	mustRegister(v, "payment", func(fl validator.FieldLevel) bool {
		return models.PaymentMethod(fl.Field().String()).Valid()
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// validateStruct runs the struct tags of s and converts failures into an
// apperr.ValidationError. extra receives checks that tags cannot express.
func validateStruct(s any, extra ...func(*apperr.ValidationError)) error {
	verr := &apperr.ValidationError{}

	err := validate.Struct(s)
	var fieldErrs validator.ValidationErrors
	switch {
	case err == nil:
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			verr.Add(fieldPath(fe), fieldMessage(fe))
		}
	default:
		return fmt.Errorf("validate %T: %w", s, err)
	}

	for _, fn := range extra {
		fn(verr)
	}

	return verr.OrNil()
}

// fieldPath drops the struct name from the namespace: "CreateOrderInput.kits[0].cpf"
// becomes "kits[0].cpf".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Field() == "kitQuantity" {
		return fmt.Sprintf("Quantidade de kits deve estar entre %d e %d", models.MinKitQuantity, models.MaxKitQuantity)
	}

	switch fe.Tag() {
	case "required", "notblank":
		return "Campo obrigatório"
	case "cpf":
		return "CPF deve ter 11 dígitos"
	case "cep":
		return "CEP deve ter 8 dígitos"
	case "ymd":
		return "Data inválida, use o formato AAAA-MM-DD"
	case "shirtsize":
		return "Tamanho de camiseta inválido"
	case "payment":
		return "Forma de pagamento inválida"
	case "email":
		return "E-mail inválido"
	case "len":
		return fmt.Sprintf("Deve ter %s caracteres", fe.Param())
	case "min":
		return fmt.Sprintf("Deve ser maior ou igual a %s", fe.Param())
	case "max":
		return fmt.Sprintf("Deve ser no máximo %s", fe.Param())
	}
	return "Valor inválido"
}
