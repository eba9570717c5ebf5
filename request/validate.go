package request

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/adamwoolhether/httpkit/errs"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("request: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("name"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}

		return name
	})
}

// descriptorRules mirrors the descriptor's validated fields.
type descriptorRules struct {
	Method string `name:"method" validate:"required,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	URL    string `name:"url" validate:"required,url"`
}

func validateDescriptor(d Descriptor) error {
	var fields FieldErrors

	fields = append(fields, check(descriptorRules{Method: string(d.method), URL: d.url}, "")...)

	if m, ok := d.body.(Multipart); ok {
		for i, f := range m.Files {
			if f == nil {
				fields = append(fields, FieldError{Field: fmt.Sprintf("files[%d]", i), Err: "This field is required"})
				continue
			}
			fields = append(fields, check(f, fmt.Sprintf("files[%d].", i))...)
		}
	}

	if len(fields) > 0 {
		return fmt.Errorf("%w: %w", errs.ErrInvalidDescriptor, fields)
	}

	return nil
}

func check(val any, prefix string) FieldErrors {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	verrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{{Field: strings.TrimSuffix(prefix, "."), Err: err.Error()}}
	}

	fields := make(FieldErrors, 0, len(verrors))
	for _, verror := range verrors {
		fields = append(fields, FieldError{
			Field: prefix + verror.Field(),
			Err:   customErrForTag(verror.Tag(), verror),
		})
	}

	return fields
}

// FieldError is a single validation failure of a descriptor field.
type FieldError struct {
	Field string
	Err   string
}

// FieldErrors collects the validation failures of a descriptor.
type FieldErrors []FieldError

// Error implements the error interface, returning a human-readable
// summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	default:
		return verror.Translate(translator)
	}
}
