package handlers

import "strings"

// Route describes one endpoint of the auth surface.
type Route struct {
	Method  string
	Path    string
	Summary string
}

// Routes lists the endpoints Dispatch answers under basePath.
func Routes(basePath string) []Route {
	b := strings.TrimRight(basePath, "/")
	return []Route{
		{"GET", b + "/sign-in/social/{provider}", "redirect to the provider"},
		{"POST", b + "/sign-in/social", "start sign-in, return provider url"},
		{"GET", b + "/callback/{provider}", "provider callback, issues the session"},
		{"GET", b + "/get-session", "current session and user"},
		{"POST", b + "/sign-out", "revoke the current session"},
		{"GET", b + "/ok", "auth router liveness"},
	}
}
