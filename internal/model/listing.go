package model

import "time"

// Listing is a provider's advertisement within a single location.  This
// core never writes listings; they arrive from the listing store already
// filtered to active rows for the requested location.
//
// Fields:
//  ID         – primary key (UUID string).
//  ProviderID – owning profile id.
//  LocationID – location (city) the listing is shown in.
//  Title      – display title.
//  IsActive   – only active listings are ranked.
//  IsFeatured – explicit, manually set featured flag.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp; fallback for provider activity.
//  Provider   – the owning profile, nil when it could not be joined.
//  Media      – attached media rows, in storage order.
type Listing struct {
    ID         string    `json:"id"`          // listings.id
    ProviderID string    `json:"profile_id"`  // listings.profile_id
    LocationID string    `json:"location_id"` // listings.location_id
    Title      string    `json:"title"`       // listings.title
    IsActive   bool      `json:"is_active"`   // listings.is_active
    IsFeatured bool      `json:"is_featured"` // listings.is_featured
    CreatedAt  time.Time `json:"created_at"`  // listings.created_at
    UpdatedAt  time.Time `json:"updated_at"`  // listings.updated_at
    Provider   *Provider `json:"profile,omitempty"`
    Media      []Media   `json:"-"`
}

// Media is a stored image attached to a listing.
type Media struct {
    ID          string `json:"id"`           // media.id
    ListingID   string `json:"listing_id"`   // media.listing_id
    StoragePath string `json:"storage_path"` // media.storage_path
    IsPrimary   bool   `json:"is_primary"`   // media.is_primary
}
