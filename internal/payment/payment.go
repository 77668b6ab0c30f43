// Package payment is the checkout boundary. Handlers only ever see the
// Provider interface; the concrete provider is chosen at startup.
package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CheckoutRef describes what a checkout session is for.
type CheckoutRef struct {
	TourID    uuid.UUID
	TourName  string
	Price     float64
	UserID    uuid.UUID
	UserEmail string
}

// Session is a created checkout session the client can be redirected to.
type Session struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	TourID    uuid.UUID `json:"tour_id"`
	Price     float64   `json:"price"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Provider creates checkout sessions with an external payment processor.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, ref CheckoutRef) (*Session, error)
}

// LocalProvider issues deterministic sessions without calling out to a
// processor. Used in development and tests.
type LocalProvider struct {
	baseURL string
}

func NewLocalProvider(baseURL string) *LocalProvider {
	return &LocalProvider{baseURL: baseURL}
}

func (p *LocalProvider) CreateCheckoutSession(ctx context.Context, ref CheckoutRef) (*Session, error) {
	// Same tour + user always yields the same session ID, which keeps
	// retried checkouts from piling up sessions.
	sum := sha256.Sum256([]byte(ref.TourID.String() + ":" + ref.UserID.String()))
	id := "cs_" + hex.EncodeToString(sum[:16])

	return &Session{
		ID:        id,
		URL:       fmt.Sprintf("%s/checkout/%s", p.baseURL, id),
		TourID:    ref.TourID,
		Price:     ref.Price,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}
