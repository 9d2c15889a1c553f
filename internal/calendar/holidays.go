package calendar

import "time"

// DefaultHolidayTable returns the built-in NYSE holiday table covering
// 2024 through 2026. Config may replace it wholesale; the version tag
// travels with every calendar built from it.
func DefaultHolidayTable() HolidayTable {
	return HolidayTable{
		Version: "nyse-2024-2026",
		Closures: dates(
			// 2024
			"2024-01-01", // New Year's Day
			"2024-01-15", // Martin Luther King Jr. Day
			"2024-02-19", // Washington's Birthday
			"2024-03-29", // Good Friday
			"2024-05-27", // Memorial Day
			"2024-06-19", // Juneteenth
			"2024-07-04", // Independence Day
			"2024-09-02", // Labor Day
			"2024-11-28", // Thanksgiving Day
			"2024-12-25", // Christmas Day
			// 2025
			"2025-01-01",
			"2025-01-09", // National Day of Mourning (President Carter)
			"2025-01-20",
			"2025-02-17",
			"2025-04-18",
			"2025-05-26",
			"2025-06-19",
			"2025-07-04",
			"2025-09-01",
			"2025-11-27",
			"2025-12-25",
			// 2026
			"2026-01-01",
			"2026-01-19",
			"2026-02-16",
			"2026-04-03",
			"2026-05-25",
			"2026-06-19",
			"2026-07-03", // Independence Day observed
			"2026-09-07",
			"2026-11-26",
			"2026-12-25",
		),
		EarlyCloses: dates(
			"2024-07-03",
			"2024-11-29",
			"2024-12-24",
			"2025-07-03",
			"2025-11-28",
			"2025-12-24",
			"2026-11-27",
			"2026-12-24",
		),
	}
}

func dates(days ...string) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		t, err := time.Parse(dateKeyLayout, d)
		if err != nil {
			panic("calendar: bad built-in holiday date " + d)
		}
		out = append(out, t)
	}
	return out
}
