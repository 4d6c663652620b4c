package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		name   string
		date   time.Time
		months int
		want   time.Time
	}{
		{
			name:   "1月31日加1个月截断到2月28日",
			date:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "闰年2月有29天",
			date:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "跨年进位",
			date:   time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC),
			months: 3,
			want:   time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "负数月份回退跨年",
			date:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			months: -1,
			want:   time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "3月31日减1个月截断到2月28日",
			date:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
			months: -1,
			want:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "加12个月回到同日",
			date:   time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
			months: 12,
			want:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddMonths(tc.date, tc.months))
		})
	}
}

func TestAddMonthsKeepsTimeOfDay(t *testing.T) {
	date := time.Date(2025, 6, 10, 14, 30, 45, 123, time.UTC)
	got := AddMonths(date, 2)
	assert.Equal(t, 14, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.Equal(t, 45, got.Second())
	assert.Equal(t, 123, got.Nanosecond())
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(2025, time.January))
	assert.Equal(t, 30, DaysInMonth(2025, time.April))
	assert.Equal(t, 28, DaysInMonth(2025, time.February))
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	// 世纪年：2000 是闰年，2100 不是
	assert.Equal(t, 29, DaysInMonth(2000, time.February))
	assert.Equal(t, 28, DaysInMonth(2100, time.February))
}
