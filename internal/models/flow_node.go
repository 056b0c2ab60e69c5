package models

// FlowNode is one box in a project's flow diagram. Order positions the node
// in the sequence and is the stable reference edges use; ids change on each
// regeneration, orders do not.
type FlowNode struct {
	BaseModel

	ProjectID uint     `gorm:"not null;index" json:"project_id"`
	Text      string   `gorm:"size:500;not null" json:"text"`
	Order     int      `gorm:"not null" json:"order"`
	Actor     string   `gorm:"size:100" json:"actor"`
	Step      string   `gorm:"size:100" json:"step"`
	PositionX *float64 `json:"position_x"`
	PositionY *float64 `json:"position_y"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
