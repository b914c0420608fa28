package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/tenants/domain"
)

func ValidateUpsertTenantConfig(ctx context.Context, request domain.UpsertConfigRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.WabaID, is.Digit, validation.Length(0, 50)),
		validation.Field(&request.PhoneNumberID, is.Digit, validation.Length(0, 50)),
		validation.Field(&request.AccessToken, validation.Length(0, 1024)),
		validation.Field(&request.VerifyToken, validation.Length(0, 255)),
		validation.Field(&request.AppSecret, validation.Length(0, 255)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
