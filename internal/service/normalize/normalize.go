// Package normalize 把外部生成过程返回的任意形状报告数据转换为严格的领域记录
// 本包是纯函数且对所有输入有定义：不做I/O，不返回错误，畸形字段一律映射为默认值
package normalize

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/spf13/cast"
	"github.com/weiwangfds/flashcal/internal/database"
)

// 默认值
const (
	DefaultChaosLevel = 50

	LabelObservation     = "观察发现" // 字符串形式的模式
	LabelBehaviorPattern = "行为模式" // 对象形式缺少 label

	TruthOverallInsight = "整体洞察" // candidAdvice 为单个字符串
	TruthStatusFeedback = "现状反馈" // candidAdvice 列表中的字符串
	TruthDeepTruth      = "深度真相" // 对象缺少 truth
	ActionPending       = "待执行建议" // 对象缺少 action
)

// MonthlyReport 将任意值规整为月度报告
func MonthlyReport(raw any) database.MonthlyAnalysisData {
	obj := asObject(generic(raw))

	return database.MonthlyAnalysisData{
		ID:           asString(obj["id"]),
		Timestamp:    asTimestamp(obj["timestamp"]),
		Grade:        asString(obj["grade"]),
		GradeTitle:   asString(obj["gradeTitle"]),
		HealthScore:  numberOr(obj["healthScore"], 0),
		ChaosLevel:   numberOr(obj["chaosLevel"], DefaultChaosLevel),
		Metrics:      metrics(obj["metrics"]),
		Patterns:     patterns(obj["patterns"]),
		CandidAdvice: candidAdvice(obj["candidAdvice"]),
	}
}

// MonthlyReportJSON 解析并规整月度报告，无法解析的内容按空输入处理
func MonthlyReportJSON(data []byte) database.MonthlyAnalysisData {
	return MonthlyReport(json.RawMessage(data))
}

// WeeklyReport 将任意值规整为周报
func WeeklyReport(raw any) database.WeeklyReportData {
	obj := asObject(generic(raw))

	risks := asString(obj["risks"])
	if risks == "" {
		risks = database.DefaultRisks
	}

	return database.WeeklyReportData{
		ID:            asString(obj["id"]),
		Timestamp:     asTimestamp(obj["timestamp"]),
		Achievements:  stringList(obj["achievements"]),
		Summary:       scalarString(obj["summary"]),
		NextWeekPlans: stringList(obj["nextWeekPlans"]),
		Risks:         risks,
	}
}

// WeeklyReportJSON 解析并规整周报
func WeeklyReportJSON(data []byte) database.WeeklyReportData {
	return WeeklyReport(json.RawMessage(data))
}

func metrics(v any) database.MonthlyMetrics {
	obj := asObject(v)
	return database.MonthlyMetrics{
		TaggedRatio:     numberOr(obj["taggedRatio"], 0),
		DeepWorkRatio:   numberOr(obj["deepWorkRatio"], 0),
		DescriptionRate: numberOr(obj["descriptionRate"], 0),
	}
}

func patterns(v any) []database.MonthlyPattern {
	items, ok := asList(v)
	out := make([]database.MonthlyPattern, 0, len(items))
	if !ok {
		return out
	}

	for i, item := range items {
		index := strconv.Itoa(i)
		switch el := item.(type) {
		case string:
			out = append(out, database.MonthlyPattern{
				ID:          index,
				Label:       LabelObservation,
				Description: el,
				Type:        database.PatternInfo,
			})
		case map[string]any:
			p := database.MonthlyPattern{
				ID:          index,
				Label:       LabelBehaviorPattern,
				Description: asString(el["description"]),
				Type:        database.PatternInfo,
			}
			if id, ok := truthyString(el["id"]); ok {
				p.ID = id
			}
			if label, ok := truthyString(el["label"]); ok {
				p.Label = label
			}
			if t := database.PatternType(asString(el["type"])); t.Valid() {
				p.Type = t
			}
			out = append(out, p)
		}
	}
	return out
}

func candidAdvice(v any) []database.CandidAdvice {
	if s, ok := v.(string); ok {
		return []database.CandidAdvice{{Truth: TruthOverallInsight, Action: s}}
	}

	items, ok := asList(v)
	out := make([]database.CandidAdvice, 0, len(items))
	if !ok {
		return out
	}

	for _, item := range items {
		switch el := item.(type) {
		case string:
			out = append(out, database.CandidAdvice{Truth: TruthStatusFeedback, Action: el})
		case map[string]any:
			a := database.CandidAdvice{Truth: TruthDeepTruth, Action: ActionPending}
			if truth, ok := truthyString(el["truth"]); ok {
				a.Truth = truth
			}
			if action, ok := truthyString(el["action"]); ok {
				a.Action = action
			}
			out = append(out, a)
		}
	}
	return out
}

// stringList 字符串列表；单个非空字符串视为一个元素，标量元素转为字符串，其余元素丢弃
func stringList(v any) []string {
	if s, ok := v.(string); ok {
		if s == "" {
			return []string{}
		}
		return []string{s}
	}

	items, ok := asList(v)
	out := make([]string, 0, len(items))
	if !ok {
		return out
	}
	for _, item := range items {
		if s := scalarString(item); s != "" || item == "" {
			out = append(out, s)
		}
	}
	return out
}

// generic 把输入转换为 encoding/json 的通用形状：map[string]any、[]any、string、float64、bool、nil
func generic(raw any) any {
	switch v := raw.(type) {
	case nil, map[string]any, []any, string, float64, bool:
		return v
	case json.RawMessage:
		return decodeGeneric(v)
	case []byte:
		return decodeGeneric(v)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return decodeGeneric(data)
}

func decodeGeneric(data []byte) any {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func asObject(v any) map[string]any {
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// scalarString 字符串原样返回，数字与布尔转为字符串，其余为空
func scalarString(v any) string {
	switch v.(type) {
	case string, bool:
		return cast.ToString(v)
	}
	if _, ok := asNumber(v); ok {
		return cast.ToString(v)
	}
	return ""
}

// truthyString 非空字符串、非零数字、true 视为有值
func truthyString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case bool:
		return "true", t
	}
	if f, ok := asNumber(v); ok && f != 0 {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

// asNumber 有限的数值；NaN 与无穷视为非数值
func asNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numberOr(v any, fallback float64) float64 {
	if f, ok := asNumber(v); ok {
		return f
	}
	return fallback
}

// asTimestamp Unix毫秒；数值直接取整，RFC3339 字符串会被解析
func asTimestamp(v any) int64 {
	if f, ok := asNumber(v); ok {
		return int64(f)
	}
	if s, ok := v.(string); ok {
		if t, err := cast.ToTimeE(s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
