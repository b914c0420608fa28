package validations

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/whatspy/whatspy/contacts/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
)

// dígitos con "+", espacios o guiones opcionales
var contactPhonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{8,18}$`)

func ValidateCreateContact(ctx context.Context, request domain.CreateContactRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Phone, validation.Required, validation.Match(contactPhonePattern)),
		validation.Field(&request.Name, validation.Length(0, 255)),
		validation.Field(&request.Labels, validation.Each(validation.Required, validation.Length(1, 50))),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
