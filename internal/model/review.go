package model

// Review is an approved customer rating for a listing.  Ratings are on a
// 1 to 5 scale; the ranking engine skips unapproved or out-of-range rows.
type Review struct {
    ListingID  string `json:"listing_id"`  // reviews.listing_id
    Rating     int    `json:"rating"`      // reviews.rating
    IsApproved bool   `json:"is_approved"` // reviews.is_approved
}
