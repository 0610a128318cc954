package model

// Roles carried in the "role" claim of access tokens.  Admins manage
// featured credit; providers own listings and share referral links.
const (
    RoleAdmin    = "ADMIN"
    RoleProvider = "PROVIDER"
)
