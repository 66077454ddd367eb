package dto

// LoginRequest carries the credentials of a login attempt.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"demo"`
	Password string `json:"password" binding:"required" example:"demo123"`
}

// LoginResponse returns the session token plus the profile the
// frontend needs to render the role dashboard.
type LoginResponse struct {
	Token        string `json:"token"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
}

// RoleInfo describes one role for the roles listing.
type RoleInfo struct {
	Key          string   `json:"key"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Datasets     []string `json:"datasets"`
	FocusAreas   []string `json:"focus_areas"`
}
