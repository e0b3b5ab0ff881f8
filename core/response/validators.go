package response

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
)

var (
	sentimentTag  = "sentiment"
	sentimentText = "sentiment must be one of positive, neutral, negative or mixed"

	notMemberText = "persona is not part of this experiment"
)

// InitValidators registers the response validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(sentimentTag, sentimentValidation)
	core.RegisterCustomTranslation(validate, translator, sentimentTag, sentimentText)
}

// Custom Validators

// sentimentValidation checks that the sentiment is one of experiment.Sentiments
func sentimentValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, s := range experiment.Sentiments {
		if val == s {
			return true
		}
	}
	return false
}
