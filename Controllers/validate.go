package Controllers

import (
	"errors"
	"strings"

	enlocale "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	locale := enlocale.New()
	uni := ut.New(locale, locale)
	trans, _ = uni.GetTranslator("en")
	validate = validator.New()
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}
}

// validationMessage flattens validator errors into one readable line for
// the response envelope.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fe.Translate(trans))
		}
		return strings.Join(parts, ", ")
	}
	return err.Error()
}
