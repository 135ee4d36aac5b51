package vibeagent

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	return v
}

// NewIntentContext builds a validated context for one run. It assigns a run id and
// switches food venues on when the vibe asks for a culinary experience.
func NewIntentContext(ic IntentContext) (IntentContext, error) {
	if ic.RunID == "" {
		ic.RunID = uuid.NewString()
	}
	if !ic.RequiresFood && ShouldEnableCulinary(ic.Vibe, ic.Profile.Interests...) {
		ic.RequiresFood = true
	}
	if err := ic.Validate(); err != nil {
		return IntentContext{}, err
	}
	return ic, nil
}

// Validate checks the struct tags on the context.
func (ic IntentContext) Validate() error {
	err := validate.Struct(ic)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate intent context: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid intent context: %s", strings.Join(msgs, "; "))
}
