package database

// PatternType 月度行为模式类型
type PatternType string

const (
	PatternInfo     PatternType = "info"
	PatternWarning  PatternType = "warning"
	PatternPositive PatternType = "positive"
)

// Valid 是否为已知的模式类型
func (t PatternType) Valid() bool {
	switch t {
	case PatternInfo, PatternWarning, PatternPositive:
		return true
	}
	return false
}

// MonthlyPattern 月度报告中识别出的行为模式
type MonthlyPattern struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Type        PatternType `json:"type"`
}

// CandidAdvice 坦诚建议，truth 为现状判断，action 为对应行动
type CandidAdvice struct {
	Truth  string `json:"truth"`
	Action string `json:"action"`
}

// MonthlyMetrics 月度比率指标，取值 0~1
type MonthlyMetrics struct {
	TaggedRatio     float64 `json:"taggedRatio"`
	DeepWorkRatio   float64 `json:"deepWorkRatio"`
	DescriptionRate float64 `json:"descriptionRate"`
}

// MonthlyAnalysisData 月度复盘报告
type MonthlyAnalysisData struct {
	ID           string           `gorm:"primaryKey;size:64" json:"id"`
	Timestamp    int64            `gorm:"index" json:"timestamp"` // Unix 毫秒
	Grade        string           `gorm:"size:16" json:"grade"`
	GradeTitle   string           `gorm:"size:200" json:"gradeTitle"`
	HealthScore  float64          `json:"healthScore"`
	ChaosLevel   float64          `json:"chaosLevel"`
	Metrics      MonthlyMetrics   `gorm:"embedded;embeddedPrefix:metrics_" json:"metrics"`
	Patterns     []MonthlyPattern `gorm:"serializer:json" json:"patterns"`
	CandidAdvice []CandidAdvice   `gorm:"serializer:json" json:"candidAdvice"`
	// Seq 首次写入顺序，时间戳相同时按它排序
	Seq int64 `gorm:"index" json:"-"`
}

// TableName 月度报告集合
func (MonthlyAnalysisData) TableName() string {
	return CollectionMonthlyReports
}

// WeeklyReportData 周报
type WeeklyReportData struct {
	ID            string   `gorm:"primaryKey;size:64" json:"id"`
	Timestamp     int64    `gorm:"index" json:"timestamp"` // Unix 毫秒
	Achievements  []string `gorm:"serializer:json" json:"achievements"`
	Summary       string   `gorm:"type:text" json:"summary"`
	NextWeekPlans []string `gorm:"serializer:json" json:"nextWeekPlans"`
	Risks         string   `gorm:"type:text" json:"risks"`
	Seq           int64    `gorm:"index" json:"-"`
}

// TableName 周报集合
func (WeeklyReportData) TableName() string {
	return CollectionWeeklyReports
}

// DefaultRisks 周报未给出风险时的占位
const DefaultRisks = "无"
