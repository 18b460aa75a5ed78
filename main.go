package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"energysage-scraper/config"
	"energysage-scraper/models"
	"energysage-scraper/scraper/energysage"
	"energysage-scraper/services"
	"energysage-scraper/storage"
	"energysage-scraper/utils"
)

func main() {
	mode := flag.String("mode", "details", "run mode: listings | states | details")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== EnergySage Installer Scraper starting (mode: %s) ===", *mode)
	logger.Info("Config: directory %s | listing pages %d | nav timeout %ds",
		cfg.DirectoryURL, cfg.ListingPages, cfg.NavTimeoutSec)

	scraper := energysage.New(cfg, logger)

	// The browser process is owned here for the whole run and closed
	// exactly once, whatever happens below.
	browserCtx, closeBrowser := scraper.NewBrowserContext(context.Background())
	defer closeBrowser()

	var err error
	switch *mode {
	case "listings":
		err = runListings(browserCtx, scraper, cfg, logger)
	case "states":
		err = runStates(browserCtx, scraper, cfg, logger)
	case "details":
		err = runDetails(browserCtx, scraper, cfg, logger)
	default:
		logger.Error("Unknown mode %q, expected listings, states or details", *mode)
		os.Exit(1)
	}

	if err != nil {
		logger.Error("Run failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\n  Done.")
}

// runListings walks the directory, visits each profile for its description,
// and writes the company CSV and JSON files.
func runListings(browserCtx context.Context, scraper *energysage.Scraper, cfg *config.Config, logger *utils.Logger) error {
	listings := scraper.CollectListings(browserCtx, cfg.DirectoryURL, cfg.ListingPages)
	if len(listings) == 0 {
		return fmt.Errorf("no listings were collected from %s", cfg.DirectoryURL)
	}

	companies := make([]models.Company, 0, len(listings))
	for i, listing := range listings {
		scraper.Pace()
		logger.Progress(i+1, len(listings), "Scraping %s", listing.Name)

		company := models.Company{
			ID:          i + 1,
			Name:        listing.Name,
			Description: "Error retrieving",
			ProfileURL:  listing.ProfileURL,
		}

		doc, title, err := scraper.FetchProfileDocument(browserCtx, listing.ProfileURL)
		if err != nil {
			logger.Warn("Profile %s failed: %v", listing.ProfileURL, err)
			companies = append(companies, company)
			continue
		}

		company.Name = energysage.CompanyNameOrTitle(listing.Name, title)
		fields := energysage.ExtractProfileFields(doc, listing.ProfileURL)
		company.Description = fields.Description
		companies = append(companies, company)
	}

	if err := storage.NewCompanyCSVStore(cfg.CompanyCSVPath).Write(companies, false); err != nil {
		return err
	}
	logger.Info("Company data saved to %s", cfg.CompanyCSVPath)

	if err := storage.NewCompanyJSONStore(cfg.CompanyJSONPath).Write(companies); err != nil {
		return err
	}
	logger.Info("Company data saved to %s", cfg.CompanyJSONPath)

	return nil
}

// runStates performs the one-time states_served migration: it re-visits
// every profile in the existing CSV, then rewrites the CSV in place (after
// a .bak backup) and updates the JSON mirror.
func runStates(browserCtx context.Context, scraper *energysage.Scraper, cfg *config.Config, logger *utils.Logger) error {
	csvStore := storage.NewCompanyCSVStore(cfg.CompanyCSVPath)

	companies, hasStates, err := csvStore.Read()
	if err != nil {
		return err
	}
	if hasStates {
		logger.Warn("states_served column already present in %s, re-scraping anyway", cfg.CompanyCSVPath)
	}
	logger.Info("Loaded %d installers from %s", len(companies), cfg.CompanyCSVPath)

	for i := range companies {
		scraper.Pace()
		logger.Progress(i+1, len(companies), "States served for %s", companies[i].Name)

		doc, _, err := scraper.FetchProfileDocument(browserCtx, companies[i].ProfileURL)
		if err != nil {
			logger.Warn("Profile %s failed: %v", companies[i].ProfileURL, err)
			continue
		}
		fields := energysage.ExtractProfileFields(doc, companies[i].ProfileURL)
		companies[i].StatesServed = fields.StatesServed
	}

	bakPath, err := csvStore.Backup()
	if err != nil {
		return err
	}
	logger.Info("Backup of original CSV written to %s", bakPath)

	if err := csvStore.Write(companies, true); err != nil {
		return err
	}
	logger.Info("Updated %s with states_served column", cfg.CompanyCSVPath)

	if err := storage.NewCompanyJSONStore(cfg.CompanyJSONPath).Write(companies); err != nil {
		return err
	}
	logger.Info("Updated %s", cfg.CompanyJSONPath)

	return nil
}

// runDetails scrapes the first CSV company end to end (profile fields,
// gallery media, reviews) and writes the sample outputs, the catalogs and
// optionally Postgres.
func runDetails(browserCtx context.Context, scraper *energysage.Scraper, cfg *config.Config, logger *utils.Logger) error {
	companies, _, err := storage.NewCompanyCSVStore(cfg.CompanyCSVPath).Read()
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		return fmt.Errorf("no companies in %s", cfg.CompanyCSVPath)
	}

	company := companies[0]
	logger.Info("Test scraping installer %d: %s", company.ID, company.Name)

	var sink storage.DetailSink
	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(cfg.DSN(), logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		sink = pg
	}

	doc, title, err := scraper.FetchProfileDocument(browserCtx, company.ProfileURL)
	if err != nil {
		return fmt.Errorf("profile page did not load: %w", err)
	}

	company.Name = energysage.CompanyNameOrTitle(company.Name, title)
	fields := energysage.ExtractProfileFields(doc, company.ProfileURL)
	if company.Description == "" || company.Description == "N/A" {
		company.Description = fields.Description
	}
	company.StatesServed = fields.StatesServed

	companyID := strconv.Itoa(company.ID)
	saver := energysage.NewMediaSaver(cfg.MediaRootDir, cfg.DownloadTimeoutSec, logger)
	media := scraper.ScrapeGallery(browserCtx, doc, company.ProfileURL, companyID, company.Name, saver)

	reviews := scraper.ScrapeReviews(browserCtx, doc, company.ProfileURL, companyID)

	result := &models.DetailResult{
		Company:        company,
		Headquarters:   fields.Headquarters,
		OtherLocations: fields.OtherLocations,
		LogoURL:        fields.LogoURL,
		Media:          media,
		Reviews:        reviews,
	}

	if err := storage.WriteDetailSample(cfg.DetailCSVPath, cfg.DetailTSVPath, result); err != nil {
		return err
	}
	logger.Info("Detail sample saved to %s and %s", cfg.DetailCSVPath, cfg.DetailTSVPath)

	if len(result.Media) > 0 {
		if err := storage.WriteMediaCatalog(cfg.MediaCatalogPath, company.ID, company.Name, result.Media); err != nil {
			return err
		}
		logger.Info("Media catalog saved to %s", cfg.MediaCatalogPath)
	}

	if len(result.Reviews.Reviews) > 0 {
		if err := storage.WriteReviewsCatalog(cfg.ReviewsCatalogPath, company.ID, company.Name, result.Reviews.Reviews); err != nil {
			return err
		}
		logger.Info("Reviews catalog saved to %s", cfg.ReviewsCatalogPath)
	}

	if sink != nil {
		if err := sink.WriteDetail(result); err != nil {
			logger.Error("Postgres write failed: %v", err)
		} else {
			logger.Info("Detail data stored in PostgreSQL")
		}
	}

	insights := services.NewInsightService(logger)
	insights.Print(insights.Generate([]*models.DetailResult{result}))

	return nil
}
