package models

// TripContext is structured travel metadata attached to a send. Every field
// is optional; a partially filled context is valid and forwarded as-is.
type TripContext struct {
	UILanguage             string `json:"ui_language,omitempty"`
	AnswerLanguage         string `json:"answer_language,omitempty"`
	NationalityCountryCode string `json:"nationality_country_code,omitempty"`
	OriginCountryCode      string `json:"origin_country_code,omitempty"`
	OriginCityOrAirport    string `json:"origin_city_or_airport,omitempty"`
	DestCountryCode        string `json:"destination_country_code,omitempty"`
	DestCityOrAirport      string `json:"destination_city_or_airport,omitempty"`
	TripType               string `json:"trip_type,omitempty"`
	DepartureDate          string `json:"departure_date,omitempty"`
	ReturnDate             string `json:"return_date,omitempty"`
	AirlineCode            string `json:"airline_code,omitempty"`
	Cabin                  string `json:"cabin,omitempty"`
	Purpose                string `json:"purpose,omitempty"`
}
