package types

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID          uint   `json:"id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
}
