package models

import "time"

// Session is a server-issued proof of a previously authenticated Identity.
// Token is only populated on the record returned by session creation; stores
// persist the token digest instead.
type Session struct {
	Token      string    `bson:"-" json:"-"`
	TokenHash  string    `bson:"_id" json:"tokenHash"`
	IdentityID string    `bson:"identityId" json:"identityId"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt  time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
