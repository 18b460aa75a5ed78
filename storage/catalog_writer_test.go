package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"energysage-scraper/models"
)

func sampleDetail() *models.DetailResult {
	return &models.DetailResult{
		Company: models.Company{
			ID:           7,
			Name:         "Acme Solar",
			Description:  strings.Repeat("x", 250),
			ProfileURL:   "https://www.energysage.com/supplier/7/acme/",
			StatesServed: []string{"CT", "MA"},
		},
		Headquarters:   "Boston, MA",
		OtherLocations: []string{"Worcester, MA", "Hartford, CT"},
		Media: []models.MediaItem{
			{ID: "7_1700000000_1", Type: "image", URL: "https://cdn.example.com/a.jpg"},
			{
				ID: "7_1700000000_2", Type: "video", Platform: "youtube",
				VideoID: "abc123", VideoURL: "https://www.youtube.com/watch?v=abc123",
				ThumbnailURL: "https://img.youtube.com/vi/abc123/hqdefault.jpg",
			},
		},
		Reviews: models.ReviewsResult{
			AggregateRating: 4.666666666666667,
			Reviews: []models.Review{
				{ID: "7_review_1700000000_1", ReviewerName: "John", Date: "June 1, 2024", Rating: 5, Text: "Great work."},
			},
		},
	}
}

func TestWriteDetailSample(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "details.csv")
	tsvPath := filepath.Join(dir, "details.tsv")

	if err := WriteDetailSample(csvPath, tsvPath, sampleDetail()); err != nil {
		t.Fatalf("WriteDetailSample: %v", err)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, utf8BOM) {
		t.Error("csv output missing UTF-8 BOM")
	}
	if !strings.Contains(content, `"id","company_name","description"`) {
		t.Error("csv header missing or unquoted")
	}
	if !strings.Contains(content, `"`+strings.Repeat("x", 200)+`..."`) {
		t.Error("description not truncated to 200 characters with ellipsis")
	}
	if !strings.Contains(content, `"Worcester, MA | Hartford, CT"`) {
		t.Error("other_locations not pipe-separated inside one quoted field")
	}
	if !strings.Contains(content, `"7_1700000000_1 | 7_1700000000_2"`) {
		t.Error("gallery_media not pipe-separated inside one quoted field")
	}
	if !strings.Contains(content, `"CT,MA"`) {
		t.Error("states_served not comma-joined")
	}
	if !strings.Contains(content, `"4.7"`) {
		t.Error("aggregate_rating not formatted to one decimal")
	}
	if !strings.Contains(content, `"1","1"`) {
		t.Error("image and video counts missing")
	}

	tsvData, err := os.ReadFile(tsvPath)
	if err != nil {
		t.Fatalf("ReadFile tsv: %v", err)
	}
	tsv := string(tsvData)
	if !strings.HasPrefix(tsv, utf8BOM) {
		t.Error("tsv output missing UTF-8 BOM")
	}
	if !strings.Contains(tsv, "id\tcompany_name\tdescription") {
		t.Error("tsv header not tab-separated")
	}
}

func TestWriteMediaCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.csv")
	d := sampleDetail()

	if err := WriteMediaCatalog(path, d.Company.ID, d.Company.Name, d.Media); err != nil {
		t.Fatalf("WriteMediaCatalog: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines; want header plus 2 media rows", len(lines))
	}

	if !strings.Contains(lines[1], `"https://cdn.example.com/a.jpg"`) {
		t.Error("image row missing source url")
	}
	// Video rows carry the thumbnail in the url column.
	if !strings.Contains(lines[2], `"https://img.youtube.com/vi/abc123/hqdefault.jpg"`) {
		t.Error("video row url column is not the thumbnail")
	}
	if !strings.Contains(lines[2], `"youtube","abc123","https://www.youtube.com/watch?v=abc123"`) {
		t.Error("video row missing platform, id and watch url")
	}
}

func TestWriteReviewsCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.csv")
	d := sampleDetail()

	if err := WriteReviewsCatalog(path, d.Company.ID, d.Company.Name, d.Reviews.Reviews); err != nil {
		t.Fatalf("WriteReviewsCatalog: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, utf8BOM) {
		t.Error("reviews catalog missing UTF-8 BOM")
	}
	if !strings.Contains(content, `"7","Acme Solar","7_review_1700000000_1","John","June 1, 2024","5.0","Great work."`) {
		t.Errorf("review row malformed:\n%s", content)
	}
}
