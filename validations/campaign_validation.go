package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/whatspy/whatspy/campaigns/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
)

const maxCampaignRecipients = 1000

func ValidateCreateCampaign(ctx context.Context, request domain.CreateCampaignRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.CampaignName, validation.RuneLength(0, 255)),
		validation.Field(&request.MessageText, validation.Required, validation.RuneLength(1, maxTextLength)),
		validation.Field(&request.Recipients,
			validation.Required,
			validation.Length(1, maxCampaignRecipients),
			validation.Each(phoneRule...),
		),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
