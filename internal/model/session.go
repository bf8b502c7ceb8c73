package model

// AuthMethod selects how a user authenticates against the tracking site
type AuthMethod string

const (
	AuthUser   AuthMethod = "user"   // login + password
	AuthScript AuthMethod = "script" // script name + API key
)

// Session represents an authenticated connection to a tracking site
type Session struct {
	SiteURL    string     // site the session is bound to
	UserName   string     // display name of the authenticated identity
	UserID     int        // remote user id (0 for script identities)
	AuthMethod AuthMethod // how the session was established
}
