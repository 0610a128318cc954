package model

// Location is a city listings are shown in.  Admins pick one when scoping a
// featured credit grant.
type Location struct {
    ID      string `json:"id"`      // locations.id
    City    string `json:"city"`    // locations.city
    State   string `json:"state"`   // locations.state
    Country string `json:"country"` // locations.country
}
