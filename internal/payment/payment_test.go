package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_DeterministicSessions(t *testing.T) {
	p := NewLocalProvider("http://localhost:8080")
	ref := CheckoutRef{
		TourID:    uuid.New(),
		TourName:  "The Sea Explorer",
		Price:     497,
		UserID:    uuid.New(),
		UserEmail: "alice@example.com",
	}

	first, err := p.CreateCheckoutSession(context.Background(), ref)
	require.NoError(t, err)
	second, err := p.CreateCheckoutSession(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, strings.HasPrefix(first.ID, "cs_"))
	assert.Equal(t, "http://localhost:8080/checkout/"+first.ID, first.URL)
	assert.Equal(t, ref.TourID, first.TourID)
	assert.Equal(t, ref.Price, first.Price)
}

func TestLocalProvider_DifferentUsersGetDifferentSessions(t *testing.T) {
	p := NewLocalProvider("http://localhost:8080")
	tourID := uuid.New()

	a, err := p.CreateCheckoutSession(context.Background(), CheckoutRef{TourID: tourID, UserID: uuid.New()})
	require.NoError(t, err)
	b, err := p.CreateCheckoutSession(context.Background(), CheckoutRef{TourID: tourID, UserID: uuid.New()})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}
