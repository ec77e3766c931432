package database

import "time"

// PlanStatus 工作计划状态
type PlanStatus string

const (
	PlanStatusTodo       PlanStatus = "TODO"
	PlanStatusInProgress PlanStatus = "IN_PROGRESS"
	PlanStatusDone       PlanStatus = "DONE"
)

// WorkPlan 工作计划
// 没有ID的计划永远不会被持久化
type WorkPlan struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	Title       string     `gorm:"size:500" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     time.Time  `json:"endDate"`
	Status      PlanStatus `gorm:"size:20;index" json:"status"`
	Tags        []string   `gorm:"serializer:json" json:"tags"`
	// Position 保存时的输入顺序，读取时按此排序
	Position int `gorm:"index" json:"-"`
}

// TableName 计划集合
func (WorkPlan) TableName() string {
	return CollectionPlans
}
