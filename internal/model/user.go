package model

import "time"

// User mirrors an account managed by the external identity provider.  Rows
// are written only by identity events, never by booking flows.
type User struct {
	ID        string    `db:"id" json:"_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	ImageURL  string    `db:"image_url" json:"image"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
