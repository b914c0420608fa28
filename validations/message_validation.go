package validations

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/whatspy/whatspy/messaging/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
)

// WhatsApp rejects text bodies longer than 4096 characters.
const maxTextLength = 4096

var phoneRule = []validation.Rule{validation.Required, validation.Length(5, 20)}

// Meta template names: lowercase letters, digits and underscores.
var templateNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

func ValidateSendText(ctx context.Context, request domain.SendTextRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, phoneRule...),
		validation.Field(&request.Text, validation.Required, validation.RuneLength(1, maxTextLength)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateSendMedia(ctx context.Context, request domain.SendMediaRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, phoneRule...),
		validation.Field(&request.MediaType, validation.Required, validation.In("image", "audio", "video", "document")),
		validation.Field(&request.Link, validation.Required, is.URL),
		validation.Field(&request.Caption, validation.RuneLength(0, 1024)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateSendLocation(ctx context.Context, request domain.SendLocationRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, phoneRule...),
		validation.Field(&request.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&request.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateCreateTemplate(ctx context.Context, request domain.CreateTemplateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&request.Content, validation.Required, validation.RuneLength(1, maxTextLength)),
		validation.Field(&request.Category, validation.Length(0, 50)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateSendTemplate(ctx context.Context, request domain.SendTemplateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.TemplateName, validation.Required),
		validation.Field(&request.To, phoneRule...),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateSendApprovedTemplate(ctx context.Context, request domain.SendApprovedTemplateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.TemplateName, validation.Required, validation.Length(1, 512), validation.Match(templateNamePattern)),
		validation.Field(&request.To, phoneRule...),
		validation.Field(&request.Language, validation.Length(2, 10)),
		validation.Field(&request.Parameters, validation.Each(validation.Required, validation.RuneLength(1, 1024))),
		validation.Field(&request.HeaderText, validation.RuneLength(0, 60)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
