package weather

import (
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// ConditionFromCategory maps the API weather group ("Rain", "Clouds", ...)
// onto a Condition.
func ConditionFromCategory(category string) Condition {
	switch category {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionCloudy
	case "Rain", "Drizzle":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm":
		return ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust", "Sand":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}

// ForecastEntry is one 3-hour forecast slot for a city.
// Entries of one city are ordered by Timestamp ascending.
type ForecastEntry struct {
	SlotKey            string   `json:"slotKey"`
	Timestamp          int64    `json:"dt"` // unix seconds
	DateTimeText       string   `json:"dtTxt"`
	Temperature        float64  `json:"temperatureC"`
	FeelsLike          float64  `json:"feelsLikeC"`
	Humidity           int      `json:"humidityPercent"`
	Pressure           int      `json:"pressureHpa"`
	WeatherMain        string   `json:"weatherMain"`
	WeatherDescription string   `json:"weatherDescription"`
	WeatherIcon        string   `json:"weatherIcon"`
	WindSpeed          float64  `json:"windSpeed"`
	CloudinessPercent  int      `json:"cloudinessPercent"`
	RainVolume3h       *float64 `json:"rainVolume3h,omitempty"`
	CityName           string   `json:"cityName"`
	CountryCode        string   `json:"countryCode"`
}

// Time returns the slot time in UTC.
func (e ForecastEntry) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Condition returns the normalized condition of the slot.
func (e ForecastEntry) Condition() Condition {
	return ConditionFromCategory(e.WeatherMain)
}

// SlotKey builds the unique key of a slot: city plus the API's display
// timestamp text.
func SlotKey(city, dateTimeText string) string {
	return city + "|" + dateTimeText
}

// CityKey is the canonical form used to index a city in stores and
// single-flight groups.
func CityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// LastFetch records when a city was last fetched successfully from the API.
type LastFetch struct {
	City      string    `json:"city"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Origin tells where a snapshot came from.
type Origin string

const (
	OriginCache  Origin = "cache"
	OriginRemote Origin = "remote"
)

// Snapshot is one immutable list of forecast entries for a city emitted at
// one point in time.
type Snapshot struct {
	City      string          `json:"city"`
	Origin    Origin          `json:"origin"`
	FetchedAt time.Time       `json:"fetchedAt"` // zero when the city was never fetched
	Entries   []ForecastEntry `json:"entries"`
}

// ForecastResponse is the parsed body of the 5 day / 3 hour forecast endpoint.
// Fields the API sends but this type does not name are ignored.
type ForecastResponse struct {
	Cod     string             `json:"cod"`
	Message float64            `json:"message"`
	Cnt     int                `json:"cnt"`
	List    []ForecastListItem `json:"list" validate:"dive"`
	City    ResponseCity       `json:"city"`
}

// ForecastListItem is one slot of ForecastResponse.List.
type ForecastListItem struct {
	Dt         int64         `json:"dt" validate:"required"`
	Main       MainMetrics   `json:"main"`
	Weather    []Description `json:"weather"`
	Clouds     Clouds        `json:"clouds"`
	Wind       Wind          `json:"wind"`
	Visibility int           `json:"visibility"`
	Pop        float64       `json:"pop"`
	Rain       *Rain         `json:"rain,omitempty"`
	Sys        struct {
		Pod string `json:"pod"`
	} `json:"sys"`
	DateTimeText string `json:"dt_txt" validate:"required"`
}

type MainMetrics struct {
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Pressure    int     `json:"pressure"`
	SeaLevel    int     `json:"sea_level"`
	GroundLevel int     `json:"grnd_level"`
	Humidity    int     `json:"humidity"`
	TempKf      float64 `json:"temp_kf"`
}

type Description struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Clouds struct {
	All int `json:"all"`
}

type Wind struct {
	Speed float64  `json:"speed"`
	Deg   int      `json:"deg"`
	Gust  *float64 `json:"gust,omitempty"`
}

type Rain struct {
	ThreeHour *float64 `json:"3h,omitempty"`
}

// ResponseCity is the city resolved by the API.
type ResponseCity struct {
	ID         int    `json:"id"`
	Name       string `json:"name" validate:"required"`
	Country    string `json:"country"`
	Population int    `json:"population"`
	Timezone   int    `json:"timezone"` // shift from UTC in seconds
	Sunrise    int64  `json:"sunrise"`
	Sunset     int64  `json:"sunset"`
	Coord      struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
}
