package models

// FlowEdge connects two nodes of the same project by their order values.
// Storing orders instead of node ids keeps edges meaningful across full
// regeneration, which replaces every node id.
type FlowEdge struct {
	BaseModel

	ProjectID     uint   `gorm:"not null;index" json:"project_id"`
	FromNodeOrder int    `gorm:"not null" json:"from_node_order"`
	ToNodeOrder   int    `gorm:"not null" json:"to_node_order"`
	Condition     string `gorm:"size:255" json:"condition"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
