// Package forms validates submitted form structs and collects field errors
// for re-rendering.
package forms

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate caches struct metadata.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", notBlank)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

const Required = "This field is required."

// Errors maps a form field name to its error messages.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

func (e Errors) Get(field string) []string {
	return e[field]
}

func (e Errors) Any() bool {
	return len(e) > 0
}

// Check validates s. messages is keyed by "Field.tag" and falls back to
// "Field" and then to Required; fields map struct names to form names.
func Check(s any, fields map[string]string, messages map[string]string) Errors {
	errs := Errors{}
	err := validate.Struct(s)
	if err == nil {
		return errs
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add("__all__", err.Error())
		return errs
	}

	for _, fe := range verrs {
		name := fe.Field()
		if formName, ok := fields[name]; ok {
			name = formName
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg, ok = messages[fe.Field()]
		}
		if !ok {
			msg = Required
		}
		errs.Add(name, msg)
	}
	return errs
}
