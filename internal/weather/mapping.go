package weather

import (
	"cmp"
	"slices"
)

// EntriesFromResponse converts an API response into store entries, ordered by
// timestamp. The city name echoed by the API wins over fallbackCity.
func EntriesFromResponse(resp *ForecastResponse, fallbackCity string) []ForecastEntry {
	city := resp.City.Name
	if city == "" {
		city = fallbackCity
	}

	entries := make([]ForecastEntry, 0, len(resp.List))
	for _, item := range resp.List {
		main, description, icon := "N/A", "N/A", ""
		if len(item.Weather) > 0 {
			main = item.Weather[0].Main
			description = item.Weather[0].Description
			icon = item.Weather[0].Icon
		}

		var rain *float64
		if item.Rain != nil && item.Rain.ThreeHour != nil {
			v := *item.Rain.ThreeHour
			rain = &v
		}

		entries = append(entries, ForecastEntry{
			SlotKey:            SlotKey(city, item.DateTimeText),
			Timestamp:          item.Dt,
			DateTimeText:       item.DateTimeText,
			Temperature:        item.Main.Temp,
			FeelsLike:          item.Main.FeelsLike,
			Humidity:           item.Main.Humidity,
			Pressure:           item.Main.Pressure,
			WeatherMain:        main,
			WeatherDescription: description,
			WeatherIcon:        icon,
			WindSpeed:          item.Wind.Speed,
			CloudinessPercent:  item.Clouds.All,
			RainVolume3h:       rain,
			CityName:           city,
			CountryCode:        resp.City.Country,
		})
	}

	SortEntries(entries)
	return entries
}

// SortEntries orders entries by timestamp ascending, in place.
func SortEntries(entries []ForecastEntry) {
	slices.SortStableFunc(entries, func(a, b ForecastEntry) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}
