package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"energysage-scraper/models"
	"energysage-scraper/utils"
)

// PostgresWriter persists companies and their media/review catalogs to
// PostgreSQL. It is optional; file outputs are the primary contract.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	ping := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Second, Logger: logger}
	if err := ping.Do("postgres-ping", db.Ping); err != nil {
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS companies (
			id            INT          PRIMARY KEY,
			name          TEXT         NOT NULL,
			description   TEXT         NOT NULL DEFAULT '',
			profile_url   TEXT         UNIQUE NOT NULL,
			states_served TEXT         NOT NULL DEFAULT '',
			headquarters  TEXT         NOT NULL DEFAULT 'N/A',
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS media_items (
			media_id       TEXT        PRIMARY KEY,
			company_id     INT         NOT NULL REFERENCES companies(id),
			media_type     VARCHAR(10) NOT NULL,
			url            TEXT        NOT NULL DEFAULT '',
			local_path     TEXT        NOT NULL DEFAULT '',
			filename       TEXT        NOT NULL DEFAULT '',
			video_platform VARCHAR(20) NOT NULL DEFAULT '',
			video_id       TEXT        NOT NULL DEFAULT '',
			video_url      TEXT        NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS reviews (
			review_id     TEXT         PRIMARY KEY,
			company_id    INT          NOT NULL REFERENCES companies(id),
			reviewer_name TEXT         NOT NULL DEFAULT 'Anonymous',
			review_date   TEXT         NOT NULL DEFAULT 'Unknown',
			rating        NUMERIC(4,2) NOT NULL DEFAULT 0,
			review_text   TEXT         NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_media_company   ON media_items(company_id);
		CREATE INDEX IF NOT EXISTS idx_reviews_company ON reviews(company_id);
		CREATE INDEX IF NOT EXISTS idx_reviews_rating  ON reviews(rating);
	`)
	return err
}

// WriteDetail stores one company's full detail scrape.
func (pw *PostgresWriter) WriteDetail(d *models.DetailResult) error {
	_, err := pw.db.Exec(`
		INSERT INTO companies (id, name, description, profile_url, states_served, headquarters)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, d.Company.ID, d.Company.Name, d.Company.Description, d.Company.ProfileURL,
		strings.Join(d.Company.StatesServed, "|"), d.Headquarters)
	if err != nil {
		return fmt.Errorf("postgres: insert company: %w", err)
	}

	if err := pw.insertMedia(d.Company.ID, d.Media); err != nil {
		return err
	}
	return pw.insertReviews(d.Company.ID, d.Reviews.Reviews)
}

func (pw *PostgresWriter) insertMedia(companyID int, media []models.MediaItem) error {
	const batchSize = 50
	for i := 0; i < len(media); i += batchSize {
		end := i + batchSize
		if end > len(media) {
			end = len(media)
		}
		batch := media[i:end]

		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]interface{}, 0, len(batch)*9)
		for idx, m := range batch {
			base := idx * 9
			valueStrings = append(valueStrings,
				fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
					base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
			url := m.URL
			if m.Type == "video" {
				url = m.ThumbnailURL
			}
			valueArgs = append(valueArgs,
				m.ID, companyID, m.Type, url, m.LocalPath, m.Filename,
				m.Platform, m.VideoID, m.VideoURL)
		}

		query := fmt.Sprintf(`
			INSERT INTO media_items (media_id, company_id, media_type, url, local_path, filename, video_platform, video_id, video_url)
			VALUES %s
			ON CONFLICT (media_id) DO NOTHING
		`, strings.Join(valueStrings, ","))

		if _, err := pw.db.Exec(query, valueArgs...); err != nil {
			return fmt.Errorf("postgres: insert media batch: %w", err)
		}
	}
	return nil
}

func (pw *PostgresWriter) insertReviews(companyID int, reviews []models.Review) error {
	const batchSize = 50
	for i := 0; i < len(reviews); i += batchSize {
		end := i + batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batch := reviews[i:end]

		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]interface{}, 0, len(batch)*6)
		for idx, r := range batch {
			base := idx * 6
			valueStrings = append(valueStrings,
				fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
					base+1, base+2, base+3, base+4, base+5, base+6))
			valueArgs = append(valueArgs,
				r.ID, companyID, r.ReviewerName, r.Date, r.Rating, r.Text)
		}

		query := fmt.Sprintf(`
			INSERT INTO reviews (review_id, company_id, reviewer_name, review_date, rating, review_text)
			VALUES %s
			ON CONFLICT (review_id) DO NOTHING
		`, strings.Join(valueStrings, ","))

		if _, err := pw.db.Exec(query, valueArgs...); err != nil {
			return fmt.Errorf("postgres: insert review batch: %w", err)
		}
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
