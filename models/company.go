package models

// Listing is a name + profile-URL pair collected from the directory's
// paginated search results, before any detail scraping.
type Listing struct {
	Name       string
	ProfileURL string
}

// Company is the record written to massachusetts_solar_installers.csv/.json.
// It is immutable once written; the only update-in-place is the one-time
// states_served column migration.
type Company struct {
	ID           int      `json:"id"`
	Name         string   `json:"company_name"`
	Description  string   `json:"description"`
	ProfileURL   string   `json:"profile_url"`
	StatesServed []string `json:"states_served,omitempty"`
}

// ProfileFields holds everything extracted from a single rendered profile
// page without further navigation.
type ProfileFields struct {
	Description    string
	Headquarters   string
	StatesServed   []string
	OtherLocations []string
	LogoURL        string
}

// MediaItem is one downloaded gallery image or recorded video reference.
// IDs embed wall-clock time and are not stable across runs; uniqueness is
// enforced by content hash of the downloaded bytes, not by ID.
type MediaItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // "image" or "video"
	URL       string `json:"url,omitempty"`
	LocalPath string `json:"path,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// Video-only fields.
	Platform     string `json:"platform,omitempty"` // "youtube" or "vimeo"
	VideoID      string `json:"video_id,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Review is a single customer review. Rating 0 means "unknown" at extraction
// time; before a review is returned the unknown value is replaced by the
// company aggregate rating, or 5.0 when that is also unknown. Callers must
// treat such defaulted ratings as fabricated, not measured.
type Review struct {
	ID           string  `json:"id"`
	ReviewerName string  `json:"reviewer_name"`
	Date         string  `json:"date"`
	Rating       float64 `json:"rating"`
	Text         string  `json:"text"`
}

// ReviewsResult pairs a company's aggregate rating with its reviews.
// AggregateRating 0 means no rating was published and none could be computed.
type ReviewsResult struct {
	AggregateRating float64  `json:"aggregate_rating"`
	Reviews         []Review `json:"reviews"`
}

// DetailResult is the full output of one company's detail scrape, the row
// source for test_installer_details.csv and the per-company catalogs.
type DetailResult struct {
	Company        Company
	Headquarters   string
	OtherLocations []string
	LogoURL        string
	Media          []MediaItem
	Reviews        ReviewsResult
}

// ScrapeSummary holds the computed analytics over a finished run.
type ScrapeSummary struct {
	TotalCompanies   int
	TotalMedia       int
	ImageCount       int
	VideoCount       int
	TotalReviews     int
	RatedReviews     int
	AverageRating    float64
	CompaniesByState map[string]int
}
