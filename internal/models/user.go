package models

// User is a passwordless account resolved from the X-User-ID header.
type User struct {
	BaseModel

	UserID      string `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName string `gorm:"size:255;not null" json:"display_name"`
	Email       string `gorm:"size:255" json:"email"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	OwnedProjects []Project `gorm:"foreignKey:OwnerID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
