package domain

import "time"

// User is the resource owner. The protocol engines treat it as an
// opaque principal reference; credential material is only touched by
// the authentication backends.
type User struct {
	ID           string    `bson:"_id"           json:"id"`
	Username     string    `bson:"username"      json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at"    json:"created_at"`
}
