package entity

// User types of portal identities
const (
	UserTypeVendor = "vendor"
	UserTypeSpa    = "spa"
	UserTypeAdmin  = "admin"
)

// Identity is the authenticated caller of an operation, threaded explicitly
// through every service call.
type Identity struct {
	UserId   string `json:"user_id"`
	UserType string `json:"user_type"`
}

// IsAdmin reports whether the identity is an administrative user.
func (i Identity) IsAdmin() bool {
	return i.UserType == UserTypeAdmin
}

// SenderType maps the identity's user type to a message sender type.
// Returns "" for identities that cannot send as a participant.
func (i Identity) SenderType() string {
	switch i.UserType {
	case UserTypeVendor:
		return SenderTypeVendor
	case UserTypeSpa:
		return SenderTypeSpa
	default:
		return ""
	}
}
