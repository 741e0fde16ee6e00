package observation_test

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/observation"
)

func validatorFixture() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	observation.InitValidators(validate, translator)
	return validate
}
