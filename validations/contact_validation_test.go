package validations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/whatspy/whatspy/contacts/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
)

func TestValidateCreateContact(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateCreateContact(ctx, domain.CreateContactRequest{Phone: "+51 999-888-777", Name: "Ana"}))
	assert.NoError(t, ValidateCreateContact(ctx, domain.CreateContactRequest{Phone: "51999888777", Labels: []string{"vip"}}))

	err := ValidateCreateContact(ctx, domain.CreateContactRequest{Phone: "abc"})
	var ve pkgError.ValidationError
	assert.ErrorAs(t, err, &ve)

	assert.Error(t, ValidateCreateContact(ctx, domain.CreateContactRequest{}))
	assert.Error(t, ValidateCreateContact(ctx, domain.CreateContactRequest{Phone: "51999888777", Labels: []string{""}}))
}
