package domain

import "fmt"

// Coords is a WGS-84 latitude/longitude coordinate pair.
type Coords struct {
	Lat float64
	Lon float64
}

// IsZero reports whether both coordinates are unset. (0, 0) is in the Gulf of
// Guinea and is not a tracked city, so it doubles as the "needs geocoding"
// sentinel.
func (c Coords) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// City is one tracked location. Cities configured without coordinates are
// resolved through the provider's geocoding endpoint at run time.
type City struct {
	Name    string
	Country string // ISO 3166-1 alpha-2 code
	Coords  Coords
}

// Query returns the "Name,CC" form the geocoding endpoint expects.
func (c City) Query() string {
	if c.Country == "" {
		return c.Name
	}
	return fmt.Sprintf("%s,%s", c.Name, c.Country)
}

// DefaultCities returns the built-in tracked cities with pinned coordinates.
func DefaultCities() []City {
	return []City{
		{Name: "Cape Town", Country: "ZA", Coords: Coords{Lat: -33.9288301, Lon: 18.4172197}},
		{Name: "Kigali", Country: "RW", Coords: Coords{Lat: -1.950851, Lon: 30.061507}},
		{Name: "Kampala", Country: "UG", Coords: Coords{Lat: 0.3177137, Lon: 32.5813539}},
	}
}
