package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"energysage-scraper/models"
)

// CompanyJSONStore mirrors the company CSV as an indented JSON array.
type CompanyJSONStore struct {
	path string
}

func NewCompanyJSONStore(path string) *CompanyJSONStore {
	return &CompanyJSONStore{path: path}
}

func (s *CompanyJSONStore) Write(companies []models.Company) error {
	data, err := json.MarshalIndent(companies, "", "  ")
	if err != nil {
		return fmt.Errorf("json: marshal companies: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", s.path, err)
	}
	return nil
}

func (s *CompanyJSONStore) Read() ([]models.Company, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("json: read %q: %w", s.path, err)
	}
	var companies []models.Company
	if err := json.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("json: parse %q: %w", s.path, err)
	}
	return companies, nil
}
