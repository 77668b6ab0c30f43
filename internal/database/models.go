package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User roles. Everything above plain "user" is staff.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// User is the users table row. Credential and lockout columns never appear
// in JSON output.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                   uuid.UUID  `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()" json:"id"`
	Name                 string     `bun:"name,notnull" json:"name"`
	Email                string     `bun:"email,notnull,unique" json:"email"`
	Photo                string     `bun:"photo,nullzero,notnull,default:'default.jpg'" json:"photo"`
	Role                 string     `bun:"role,nullzero,notnull,default:'user'" json:"role"`
	PasswordHash         string     `bun:"password_hash,notnull" json:"-"`
	PasswordChangedAt    *time.Time `bun:"password_changed_at" json:"-"`
	PasswordResetToken   *string    `bun:"password_reset_token" json:"-"`
	PasswordResetExpires *time.Time `bun:"password_reset_expires" json:"-"`
	Active               bool       `bun:"active,notnull,default:true" json:"-"`
	FailedLoginAttempts  int        `bun:"failed_login_attempts,notnull,default:0" json:"-"`
	LockedUntil          *time.Time `bun:"locked_until" json:"-"`
	CreatedAt            time.Time  `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt            time.Time  `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
	Version              int64      `bun:"version,notnull,default:0" json:"-"`
}

type Tour struct {
	bun.BaseModel `bun:"table:tours,alias:t"`

	ID              uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()" json:"id"`
	Name            string    `bun:"name,notnull" json:"name"`
	Duration        int       `bun:"duration,notnull" json:"duration"`
	MaxGroupSize    int       `bun:"max_group_size,notnull" json:"max_group_size"`
	Difficulty      string    `bun:"difficulty,notnull" json:"difficulty"`
	Price           float64   `bun:"price,notnull" json:"price"`
	PriceDiscount   *float64  `bun:"price_discount" json:"price_discount,omitempty"`
	Summary         string    `bun:"summary,notnull" json:"summary"`
	Description     string    `bun:"description" json:"description,omitempty"`
	ImageCover      string    `bun:"image_cover" json:"image_cover,omitempty"`
	RatingsAverage  float64   `bun:"ratings_average,nullzero,notnull,default:4.5" json:"ratings_average"`
	RatingsQuantity int       `bun:"ratings_quantity,notnull,default:0" json:"ratings_quantity"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
	Version         int64     `bun:"version,notnull,default:0" json:"-"`
}

type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:r"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()" json:"id"`
	Review    string    `bun:"review,notnull" json:"review"`
	Rating    float64   `bun:"rating,notnull" json:"rating"`
	TourID    uuid.UUID `bun:"tour_id,type:uuid,nullzero,notnull" json:"tour_id"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,nullzero,notnull" json:"user_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
	Version   int64     `bun:"version,notnull,default:0" json:"-"`

	Tour *Tour `bun:"rel:belongs-to,join:tour_id=id" json:"tour,omitempty"`
	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()" json:"id"`
	TourID    uuid.UUID `bun:"tour_id,type:uuid,nullzero,notnull" json:"tour_id"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,nullzero,notnull" json:"user_id"`
	Price     float64   `bun:"price,notnull" json:"price"`
	Paid      bool      `bun:"paid,notnull,default:true" json:"paid"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
	Version   int64     `bun:"version,notnull,default:0" json:"-"`

	Tour *Tour `bun:"rel:belongs-to,join:tour_id=id" json:"tour,omitempty"`
	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}
