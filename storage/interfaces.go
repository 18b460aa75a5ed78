package storage

import "energysage-scraper/models"

// DetailSink is the interface any backend storing full detail scrapes must
// satisfy. The Postgres writer implements it; file catalogs have their own
// per-file contracts.
type DetailSink interface {
	WriteDetail(d *models.DetailResult) error
	Close() error
}
