package services

import (
	"fmt"
	"sort"
	"strings"

	"energysage-scraper/models"
	"energysage-scraper/utils"
)

// InsightService computes summary analytics over a finished scrape run.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds a ScrapeSummary from the detail results of one run.
func (s *InsightService) Generate(results []*models.DetailResult) *models.ScrapeSummary {
	summary := &models.ScrapeSummary{
		CompaniesByState: make(map[string]int),
	}

	if len(results) == 0 {
		return summary
	}

	summary.TotalCompanies = len(results)

	var ratingSum float64
	var ratedCompanies int

	for _, r := range results {
		summary.TotalMedia += len(r.Media)
		for _, m := range r.Media {
			switch m.Type {
			case "image":
				summary.ImageCount++
			case "video":
				summary.VideoCount++
			}
		}

		summary.TotalReviews += len(r.Reviews.Reviews)
		for _, rev := range r.Reviews.Reviews {
			if rev.Rating > 0 {
				summary.RatedReviews++
			}
		}

		if r.Reviews.AggregateRating > 0 {
			ratingSum += r.Reviews.AggregateRating
			ratedCompanies++
		}

		for _, state := range r.Company.StatesServed {
			summary.CompaniesByState[state]++
		}
	}

	if ratedCompanies > 0 {
		summary.AverageRating = ratingSum / float64(ratedCompanies)
	}

	return summary
}

// Print writes the summary report to the console.
func (s *InsightService) Print(summary *models.ScrapeSummary) {
	s.logger.Info("=== Scrape Summary ===")
	s.logger.Info("Companies:       %d", summary.TotalCompanies)
	s.logger.Info("Media items:     %d (%d images, %d videos)",
		summary.TotalMedia, summary.ImageCount, summary.VideoCount)
	s.logger.Info("Reviews:         %d (%d with a measured rating)",
		summary.TotalReviews, summary.RatedReviews)
	if summary.AverageRating > 0 {
		s.logger.Info("Average rating:  %.1f", summary.AverageRating)
	}

	if len(summary.CompaniesByState) > 0 {
		states := make([]string, 0, len(summary.CompaniesByState))
		for state := range summary.CompaniesByState {
			states = append(states, state)
		}
		sort.Strings(states)

		parts := make([]string, 0, len(states))
		for _, state := range states {
			parts = append(parts, fmt.Sprintf("%s: %d", state, summary.CompaniesByState[state]))
		}
		s.logger.Info("State coverage:  %s", strings.Join(parts, " | "))
	}
}
