package domain

import "time"

// AddMonths 在日期上加指定月数，处理月末问题（1月31日 + 1个月 = 2月28/29日）。
// time.AddDate 在月末会溢出到下个月，这里按目标月实际天数截断。
func AddMonths(date time.Time, months int) time.Time {
	month := int(date.Month()) - 1 + months
	year := date.Year() + month/12
	month = month%12 + 1
	if month <= 0 {
		month += 12
		year--
	}

	day := date.Day()
	if dim := DaysInMonth(year, time.Month(month)); day > dim {
		day = dim
	}

	return time.Date(year, time.Month(month), day,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

// DaysInMonth 返回指定年月的天数
func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.April, time.June, time.September, time.November:
		return 30
	case time.February:
		if isLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
