package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"energysage-scraper/models"
)

var detailFieldnames = []string{
	"id", "company_name", "description", "profile_url",
	"states_served", "headquarters", "other_locations", "gallery_media",
	"image_count", "video_count", "aggregate_rating", "review_count",
}

var mediaFieldnames = []string{
	"company_id", "company_name", "media_id", "media_type",
	"url", "local_path", "filename",
	"video_platform", "video_id", "video_url",
}

var reviewsFieldnames = []string{
	"company_id", "company_name", "review_id", "reviewer_name",
	"review_date", "rating", "review_text",
}

// detailRow flattens a DetailResult into the sample-output column order.
// other_locations and gallery_media use " | " as the internal separator
// inside their one quoted field; states_served is comma-joined.
func detailRow(d *models.DetailResult) []string {
	mediaIDs := make([]string, 0, len(d.Media))
	imageCount, videoCount := 0, 0
	for _, m := range d.Media {
		mediaIDs = append(mediaIDs, m.ID)
		switch m.Type {
		case "image":
			imageCount++
		case "video":
			videoCount++
		}
	}

	description := d.Company.Description
	if runes := []rune(description); len(runes) > 200 {
		description = string(runes[:200]) + "..."
	}

	return []string{
		strconv.Itoa(d.Company.ID),
		d.Company.Name,
		description,
		d.Company.ProfileURL,
		strings.Join(d.Company.StatesServed, ","),
		d.Headquarters,
		strings.Join(d.OtherLocations, " | "),
		strings.Join(mediaIDs, " | "),
		strconv.Itoa(imageCount),
		strconv.Itoa(videoCount),
		formatRating(d.Reviews.AggregateRating),
		strconv.Itoa(len(d.Reviews.Reviews)),
	}
}

func formatRating(r float64) string {
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// WriteDetailSample writes the single-row detail outputs: a fully-quoted
// CSV and a tab-separated variant, both with a UTF-8 byte-order mark for
// spreadsheet compatibility.
func WriteDetailSample(csvPath, tsvPath string, d *models.DetailResult) error {
	row := detailRow(d)

	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("catalog: create %q: %w", csvPath, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(utf8BOM); err != nil {
		f.Close()
		return fmt.Errorf("catalog: write BOM: %w", err)
	}
	if err := writeQuotedRecord(w, detailFieldnames); err != nil {
		f.Close()
		return fmt.Errorf("catalog: write header: %w", err)
	}
	if err := writeQuotedRecord(w, row); err != nil {
		f.Close()
		return fmt.Errorf("catalog: write row: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("catalog: flush %q: %w", csvPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	tf, err := os.Create(tsvPath)
	if err != nil {
		return fmt.Errorf("catalog: create %q: %w", tsvPath, err)
	}
	defer tf.Close()

	if _, err := tf.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("catalog: write BOM: %w", err)
	}
	tw := csv.NewWriter(tf)
	tw.Comma = '\t'
	if err := tw.Write(detailFieldnames); err != nil {
		return fmt.Errorf("catalog: write tsv header: %w", err)
	}
	if err := tw.Write(row); err != nil {
		return fmt.Errorf("catalog: write tsv row: %w", err)
	}
	tw.Flush()
	return tw.Error()
}

// WriteMediaCatalog writes one row per media item. For videos, the url and
// local_path columns carry the thumbnail, and the video_* columns identify
// the actual video.
func WriteMediaCatalog(path string, companyID int, companyName string, media []models.MediaItem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("catalog: create %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("catalog: write BOM: %w", err)
	}
	if err := writeQuotedRecord(w, mediaFieldnames); err != nil {
		return fmt.Errorf("catalog: write header: %w", err)
	}

	for _, m := range media {
		url := m.URL
		if m.Type == "video" {
			url = m.ThumbnailURL
		}
		row := []string{
			strconv.Itoa(companyID),
			companyName,
			m.ID,
			m.Type,
			url,
			m.LocalPath,
			m.Filename,
			m.Platform,
			m.VideoID,
			m.VideoURL,
		}
		if err := writeQuotedRecord(w, row); err != nil {
			return fmt.Errorf("catalog: write media row: %w", err)
		}
	}

	return w.Flush()
}

// WriteReviewsCatalog writes one row per review.
func WriteReviewsCatalog(path string, companyID int, companyName string, reviews []models.Review) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("catalog: create %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("catalog: write BOM: %w", err)
	}
	if err := writeQuotedRecord(w, reviewsFieldnames); err != nil {
		return fmt.Errorf("catalog: write header: %w", err)
	}

	for _, r := range reviews {
		row := []string{
			strconv.Itoa(companyID),
			companyName,
			r.ID,
			r.ReviewerName,
			r.Date,
			formatRating(r.Rating),
			r.Text,
		}
		if err := writeQuotedRecord(w, row); err != nil {
			return fmt.Errorf("catalog: write review row: %w", err)
		}
	}

	return w.Flush()
}
