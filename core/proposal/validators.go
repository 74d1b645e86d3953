package proposal

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/thesisman/backend/core"
)

var (
	levelTag  = "level"
	levelText = "level must be one of BSC, MSC"
)

// InitValidators registers the proposal specific validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(levelTag, levelValidation)
	core.RegisterCustomTranslation(validate, translator, levelTag, levelText)
}

func levelValidation(fl validator.FieldLevel) bool {
	return Level(fl.Field().String()).Valid()
}
