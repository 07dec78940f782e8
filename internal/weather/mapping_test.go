package weather

import (
	"testing"
	"time"
)

func TestEntriesFromResponse(t *testing.T) {
	rain := 0.42
	resp := &ForecastResponse{
		Cod: "200",
		Cnt: 2,
		List: []ForecastListItem{
			{
				Dt:           1747663200,
				DateTimeText: "2025-05-19 14:00:00",
				Main:         MainMetrics{Temp: 17.2, FeelsLike: 16.4, Humidity: 55, Pressure: 1012},
				Weather:      []Description{{Main: "Rain", Description: "легкий дощ", Icon: "10d"}},
				Wind:         Wind{Speed: 4.1},
				Clouds:       Clouds{All: 90},
				Rain:         &Rain{ThreeHour: &rain},
			},
			{
				Dt:           1747652400,
				DateTimeText: "2025-05-19 11:00:00",
				Main:         MainMetrics{Temp: 15.9, FeelsLike: 15.1, Humidity: 61, Pressure: 1013},
				Wind:         Wind{Speed: 3.5},
				Clouds:       Clouds{All: 40},
			},
		},
		City: ResponseCity{Name: "Kyiv", Country: "UA"},
	}

	entries := EntriesFromResponse(resp, "kyiv")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first, second := entries[0], entries[1]
	if first.Timestamp != 1747652400 || second.Timestamp != 1747663200 {
		t.Fatalf("entries not ordered by timestamp: %d, %d", first.Timestamp, second.Timestamp)
	}
	if first.SlotKey != "Kyiv|2025-05-19 11:00:00" {
		t.Errorf("unexpected slot key %q", first.SlotKey)
	}
	if first.WeatherMain != "N/A" || first.WeatherDescription != "N/A" || first.WeatherIcon != "" {
		t.Errorf("expected placeholder weather for a slot without description, got %+v", first)
	}
	if first.RainVolume3h != nil {
		t.Errorf("expected no rain volume, got %v", *first.RainVolume3h)
	}
	if second.RainVolume3h == nil || *second.RainVolume3h != rain {
		t.Errorf("expected rain volume %v, got %v", rain, second.RainVolume3h)
	}
	if second.CityName != "Kyiv" || second.CountryCode != "UA" {
		t.Errorf("unexpected city %q/%q", second.CityName, second.CountryCode)
	}
	if second.Condition() != ConditionRain {
		t.Errorf("expected rain condition, got %s", second.Condition())
	}

	// The copy must not alias the response.
	rain = 9
	if *second.RainVolume3h != 0.42 {
		t.Error("rain volume aliases the response")
	}
}

func TestEntriesFromResponse_FallbackCity(t *testing.T) {
	resp := &ForecastResponse{
		List: []ForecastListItem{{Dt: 1, DateTimeText: "1970-01-01 00:00:01"}},
	}
	entries := EntriesFromResponse(resp, "Lviv")
	if entries[0].CityName != "Lviv" || entries[0].SlotKey != "Lviv|1970-01-01 00:00:01" {
		t.Errorf("expected fallback city, got %+v", entries[0])
	}
}

func TestConditionFromCategory(t *testing.T) {
	tests := map[string]Condition{
		"Clear":        ConditionClear,
		"Clouds":       ConditionCloudy,
		"Drizzle":      ConditionRain,
		"Snow":         ConditionSnow,
		"Thunderstorm": ConditionStorm,
		"Fog":          ConditionMist,
		"Tornado":      ConditionUnknown,
		"":             ConditionUnknown,
	}
	for category, want := range tests {
		if got := ConditionFromCategory(category); got != want {
			t.Errorf("ConditionFromCategory(%q) = %s, want %s", category, got, want)
		}
	}
}

func TestCityKey(t *testing.T) {
	if CityKey("  Kyiv ") != CityKey("KYIV") {
		t.Errorf("expected %q and %q to share a key", "  Kyiv ", "KYIV")
	}
}

func TestSummarizeDays(t *testing.T) {
	day := time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC)
	rain := 1.5

	entry := func(offset time.Duration, temp float64, humidity int, wind float64, main string, r *float64) ForecastEntry {
		ts := day.Add(offset)
		return ForecastEntry{
			Timestamp:    ts.Unix(),
			DateTimeText: ts.Format("2006-01-02 15:04:05"),
			Temperature:  temp,
			Humidity:     humidity,
			WindSpeed:    wind,
			WeatherMain:  main,
			RainVolume3h: r,
		}
	}

	entries := []ForecastEntry{
		entry(9*time.Hour, 12, 60, 2, "Clouds", nil),
		entry(12*time.Hour, 18, 40, 4, "Rain", &rain),
		entry(15*time.Hour, 16, 50, 3, "Rain", &rain),
		entry(18*time.Hour, 10, 70, 1, "Clouds", nil),
		entry(27*time.Hour, 8, 80, 5, "Clear", nil),
		entry(30*time.Hour, 9, 90, 6, "Snow", nil),
	}

	days := SummarizeDays(entries)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}

	first := days[0]
	if !first.Date.Equal(day) || first.Slots != 4 {
		t.Errorf("unexpected first day %v with %d slots", first.Date, first.Slots)
	}
	if first.MinTemp != 10 || first.MaxTemp != 18 {
		t.Errorf("expected temperatures 10..18, got %v..%v", first.MinTemp, first.MaxTemp)
	}
	if first.AvgHumidity != 55 || first.AvgWindSpeed != 2.5 {
		t.Errorf("unexpected averages humidity=%v wind=%v", first.AvgHumidity, first.AvgWindSpeed)
	}
	if first.RainMM != 3 {
		t.Errorf("expected 3mm of rain, got %v", first.RainMM)
	}
	// Two cloudy and two rainy slots; the cloudy one came first.
	if first.Condition != ConditionCloudy {
		t.Errorf("expected cloudy, got %s", first.Condition)
	}

	second := days[1]
	if second.Slots != 2 || second.Condition != ConditionClear {
		t.Errorf("unexpected second day: %+v", second)
	}
}

func TestSummarizeDays_Empty(t *testing.T) {
	if days := SummarizeDays(nil); len(days) != 0 {
		t.Errorf("expected no days, got %d", len(days))
	}
}
