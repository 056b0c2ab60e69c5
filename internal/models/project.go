package models

// ProjectStatusDraft is the status assigned to newly created projects.
const ProjectStatusDraft = "draft"

type Project struct {
	BaseModel

	Name       string `gorm:"size:255;not null" json:"name"`
	Department string `gorm:"size:100" json:"department"`
	Status     string `gorm:"size:50;not null;default:draft" json:"status"`
	OwnerID    uint   `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Owner       User         `gorm:"foreignKey:OwnerID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	HearingLogs []HearingLog `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	FlowNodes   []FlowNode   `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	FlowEdges   []FlowEdge   `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
