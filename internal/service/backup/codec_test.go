package backup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/flashcal/internal/database"
	apperrors "github.com/weiwangfds/flashcal/internal/errors"
)

func samplePlans() []database.WorkPlan {
	return []database.WorkPlan{
		{
			ID:          "p1",
			Title:       "写周报",
			Description: "整理本周进展",
			StartDate:   time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
			Status:      database.PlanStatusInProgress,
			Tags:        []string{"工作", "复盘"},
		},
		{
			ID:     "p2",
			Title:  "跑步",
			Status: database.PlanStatusDone,
		},
	}
}

func TestRoundTrip(t *testing.T) {
	plans := samplePlans()
	settings := json.RawMessage(`{"theme":"dark","weekStart":1}`)

	for _, pretty := range []bool{false, true} {
		data, err := Marshal(Encode(plans, settings), pretty)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, plans, decoded.Plans)
		assert.JSONEq(t, string(settings), string(decoded.Settings))
		assert.Equal(t, CurrentVersion, decoded.Version)
		assert.False(t, decoded.Date.IsZero())
	}
}

func TestEncodeWithoutPlansOrSettings(t *testing.T) {
	data, err := Marshal(Encode(nil, nil), false)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"plans":[]`)
	assert.NotContains(t, string(data), "settings")

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, decoded.Plans)
	assert.Nil(t, decoded.Settings)
}

func TestDecodeRejectsInvalidShapes(t *testing.T) {
	cases := map[string]string{
		"不是JSON":     `plans: []`,
		"根为数组":       `[{"plans": []}]`,
		"根为null":     `null`,
		"缺少plans":    `{"version": 1, "date": "2024-06-01T00:00:00Z"}`,
		"plans为对象":   `{"plans": {"p1": {}}}`,
		"plans为null": `{"plans": null}`,
		"plans为字符串":  `{"plans": "[]"}`,
		"计划字段类型错误":   `{"plans": [{"id": 1}]}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			b, err := Decode([]byte(input))
			assert.Nil(t, b)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidFormat), "got %v", err)
		})
	}
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	b, err := Decode([]byte(`{"version": 99, "plans": []}`))
	assert.Nil(t, b)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnsupportedVersion))
}

func TestDecodeAcceptsOlderBundle(t *testing.T) {
	b, err := Decode([]byte(`{"version": 1, "date": "2023-01-01T00:00:00.000Z", "plans": [{"id": "a", "title": "旧"}, {"title": "无ID"}], "settings": null}`))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Version)
	require.Len(t, b.Plans, 2)
	assert.Equal(t, "", b.Plans[1].ID)
	assert.Nil(t, b.Settings)
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "flash-calendar-backup-2024-06-09.json", ExportFileName(time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC)))
}
