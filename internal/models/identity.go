package models

import "time"

// Identity is a user record derived from an external provider's claims.
// (Provider, Subject) is unique.
type Identity struct {
	ID        string    `bson:"_id" json:"id"`
	Provider  string    `bson:"provider" json:"provider"`
	Subject   string    `bson:"subject" json:"subject"` // provider-scoped subject (sub claim)
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	AvatarURL string    `bson:"avatarUrl,omitempty" json:"image,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
