package validation

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sluiceio/sluice/pkg/types"
)

var structValidator *validator.Validate

// V returns the shared struct validator with the custom registrations below.
func V() *validator.Validate {
	if structValidator == nil {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
	}
	return structValidator
}

const streamNameRegex = `^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`
const streamNameMaxLength = 63

// streamNameValidator checks if the given name follows our convention.
func streamNameValidator(fl validator.FieldLevel) bool {
	var str string
	if ns, ok := fl.Field().Interface().(types.NullableString); ok {
		if ns.IsNil() {
			return true
		}
		str = ns.String()
	} else {
		str = fl.Field().String()
	}

	// Check the length of the name
	if len(str) > streamNameMaxLength {
		return false
	}

	re := regexp.MustCompile(streamNameRegex)
	return re.MatchString(str)
}

// ValidStreamName reports whether name follows the stream naming convention.
func ValidStreamName(name string) bool {
	if len(name) > streamNameMaxLength {
		return false
	}
	re := regexp.MustCompile(streamNameRegex)
	return re.MatchString(name)
}

// notNull checks if a nullable value is not null
func notNull(fl validator.FieldLevel) bool {
	nv, ok := fl.Field().Interface().(types.Nullable)
	if !ok { // not a nullable type
		return true
	}
	return !nv.IsNil()
}

// durationValidator checks if the field holds a parsable duration string.
// Empty strings pass; pair with required when the field is mandatory.
func durationValidator(fl validator.FieldLevel) bool {
	str := fl.Field().String()
	if str == "" {
		return true
	}
	_, err := time.ParseDuration(str)
	return err == nil
}

func init() {
	V().RegisterValidation("streamName", streamNameValidator)
	V().RegisterValidation("notNull", notNull)
	V().RegisterValidation("duration", durationValidator)
}
