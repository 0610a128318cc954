package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/marketplace-ranking/internal/ranking"
)

// ListingRanker returns one page of ranked listings.
type ListingRanker interface {
    RankListings(ctx context.Context, locationID string, limit, offset int, featuredOnly bool) (ranking.Page, error)
}

// ListingHandler serves the public ranked listing feed.
type ListingHandler struct {
    svc ListingRanker
}

// NewListingHandler returns a ListingHandler over svc.
func NewListingHandler(svc ListingRanker) *ListingHandler { return &ListingHandler{svc: svc} }

// List handles GET /v1/listings?location_id=&limit=&offset=&featured=.
// Pagination is permissive: unparsable numbers fall back to defaults and
// out-of-range values are clamped.
func (h *ListingHandler) List(c echo.Context) error {
    locationID := strings.TrimSpace(c.QueryParam("location_id"))
    if locationID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "location_id is required"})
    }
    limit := queryInt(c, "limit")
    offset := queryInt(c, "offset")
    featured := queryBool(c, "featured")

    page, err := h.svc.RankListings(c.Request().Context(), locationID, limit, offset, featured)
    if err != nil {
        if errors.Is(err, ranking.ErrInvalidInput) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid location_id"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load listings"})
    }
    return c.JSON(http.StatusOK, page)
}

func queryInt(c echo.Context, name string) int {
    n, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
    if err != nil {
        return 0
    }
    return n
}

func queryBool(c echo.Context, name string) bool {
    switch strings.ToLower(strings.TrimSpace(c.QueryParam(name))) {
    case "1", "true", "yes":
        return true
    }
    return false
}
