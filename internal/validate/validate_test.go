package validate

import (
	"testing"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_UsesJSONNames(t *testing.T) {
	fields := Fields(&domain.ReviewInput{BookingID: 3, Rating: 7})

	require.Contains(t, fields, "rating")
	assert.Equal(t, []string{"Ensure this value is less than or equal to 5."}, fields["rating"])
	assert.NotContains(t, fields, "booking")
}

func TestFields_Valid(t *testing.T) {
	assert.Nil(t, Fields(&domain.ReviewInput{BookingID: 3, Rating: 5, Comment: "neat stitching"}))
}

func TestStruct_ValidationError(t *testing.T) {
	err := Struct(&domain.ServiceInput{Price: "abc"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "price")
	assert.Equal(t, "name: This field is required. price: A valid number is required.", verr.Error())
}
