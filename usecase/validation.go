package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
)

// missingMessages overrides the "Missing <field>" text for some inputs
var missingMessages = map[string]string{
	"api_transcription_id": "Missing transcription ID",
}

func newValidator() *validator.Validate {
	v := validator.New()

	// report JSON names in messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("audio_filename", func(fl validator.FieldLevel) bool {
		return entities.IsSupportedAudioFilename(fl.Field().String())
	})
	return v
}

// validationError turns the first failed rule into a user-facing error
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return domain.NewError(domain.KindValidation, fmt.Sprintf("Invalid request: %v", err), err)
	}

	fe := errs[0]
	switch fe.Tag() {
	case "required":
		if msg, ok := missingMessages[fe.Field()]; ok {
			return domain.ValidationError(msg)
		}
		return domain.ValidationError("Missing " + fe.Field())
	case "audio_filename":
		return domain.ValidationError(fmt.Sprintf("Unsupported audio format: %v", fe.Value()))
	case "oneof":
		return domain.ValidationError(fmt.Sprintf("Invalid %s: %v (expected one of %s)", fe.Field(), fe.Value(), fe.Param()))
	default:
		return domain.ValidationError(fmt.Sprintf("Invalid %s", fe.Field()))
	}
}
