package oauthflow

import (
	"time"

	"github.com/quickauth/auth-service/internal/models"
)

// Status is the position of an attempt in the sign-in state machine.
type Status int

const (
	Started Status = iota
	Redirected
	CallbackReceived
	Exchanged
	Completed
	Failed
)

var statusNames = [...]string{"started", "redirected", "callback_received", "exchanged", "completed", "failed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return s == Completed || s == Failed }

// Attempt is one pending sign-in. It travels to the browser inside the signed
// state cookie and comes back with the callback.
type Attempt struct {
	Provider    string
	State       string
	Verifier    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RedirectURL string
	Status      Status
}

// Expired reports whether the attempt is no longer honoured at now.
func (a *Attempt) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Callback holds the query parameters a provider sends back.
type Callback struct {
	Provider         string
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// Outcome is the result of a completed exchange.
type Outcome struct {
	Status   Status
	Identity *models.Identity
	Session  *models.Session
}
