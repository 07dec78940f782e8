package weather

import "time"

// DaySummary condenses the slots of one calendar day.
type DaySummary struct {
	Date         time.Time `json:"date"` // midnight UTC
	Slots        int       `json:"slots"`
	MinTemp      float64   `json:"minTemperatureC"`
	MaxTemp      float64   `json:"maxTemperatureC"`
	AvgHumidity  float64   `json:"avgHumidityPercent"`
	AvgWindSpeed float64   `json:"avgWindSpeed"`
	RainMM       float64   `json:"rainMm"`
	Condition    Condition `json:"condition"`
}

// SummarizeDays groups ordered entries by UTC day. Numeric fields are
// averaged or bounded; the condition is selected by majority (earliest slot
// wins a tie).
func SummarizeDays(entries []ForecastEntry) []DaySummary {
	var (
		days   []DaySummary
		counts map[Condition]int
		first  map[Condition]int
		sumHum float64
		sumWnd float64
	)

	flush := func() {
		if len(days) == 0 {
			return
		}
		d := &days[len(days)-1]
		n := float64(d.Slots)
		d.AvgHumidity = sumHum / n
		d.AvgWindSpeed = sumWnd / n

		best, bestCount, bestIdx := ConditionUnknown, 0, 0
		for cond, count := range counts {
			if count > bestCount || (count == bestCount && first[cond] < bestIdx) {
				best, bestCount, bestIdx = cond, count, first[cond]
			}
		}
		d.Condition = best
	}

	for _, e := range entries {
		ts := e.Time()
		date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)

		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			flush()
			days = append(days, DaySummary{
				Date:    date,
				MinTemp: e.Temperature,
				MaxTemp: e.Temperature,
			})
			counts = make(map[Condition]int)
			first = make(map[Condition]int)
			sumHum, sumWnd = 0, 0
		}

		d := &days[len(days)-1]
		if e.Temperature < d.MinTemp {
			d.MinTemp = e.Temperature
		}
		if e.Temperature > d.MaxTemp {
			d.MaxTemp = e.Temperature
		}
		if e.RainVolume3h != nil {
			d.RainMM += *e.RainVolume3h
		}
		sumHum += float64(e.Humidity)
		sumWnd += e.WindSpeed

		cond := e.Condition()
		if _, seen := first[cond]; !seen {
			first[cond] = d.Slots
		}
		counts[cond]++
		d.Slots++
	}
	flush()

	return days
}
