package validations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/whatspy/whatspy/messaging/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
)

func TestValidateSendText(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateSendText(ctx, domain.SendTextRequest{To: "+51999888777", Text: "hola"}))

	err := ValidateSendText(ctx, domain.SendTextRequest{To: "", Text: "hola"})
	var vErr pkgError.ValidationError
	assert.ErrorAs(t, err, &vErr)

	assert.Error(t, ValidateSendText(ctx, domain.SendTextRequest{To: "+51999888777"}))
}

func TestValidateSendMedia(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateSendMedia(ctx, domain.SendMediaRequest{To: "+51999888777", MediaType: "image", Link: "https://example.com/a.jpg"}))
	assert.Error(t, ValidateSendMedia(ctx, domain.SendMediaRequest{To: "+51999888777", MediaType: "sticker", Link: "https://example.com/a.webp"}))
	assert.Error(t, ValidateSendMedia(ctx, domain.SendMediaRequest{To: "+51999888777", MediaType: "image", Link: "not a url"}))
}

func TestValidateSendLocation(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateSendLocation(ctx, domain.SendLocationRequest{To: "+51999888777", Latitude: -12.04, Longitude: -77.03}))
	assert.Error(t, ValidateSendLocation(ctx, domain.SendLocationRequest{To: "+51999888777", Latitude: 120}))
}

func TestValidateTemplates(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateCreateTemplate(ctx, domain.CreateTemplateRequest{Name: "welcome", Content: "Hola {{name}}"}))
	assert.Error(t, ValidateCreateTemplate(ctx, domain.CreateTemplateRequest{Name: "", Content: "x"}))

	assert.NoError(t, ValidateSendTemplate(ctx, domain.SendTemplateRequest{TemplateName: "welcome", To: "+51999888777"}))
	assert.Error(t, ValidateSendTemplate(ctx, domain.SendTemplateRequest{To: "+51999888777"}))
}
