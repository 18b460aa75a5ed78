package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DirectoryURL string
	ListingPages int

	NavTimeoutSec      int
	SettleDelayMs      int
	CompanyDelayMs     int
	DownloadTimeoutSec int
	MaxReviewPages     int

	CompanyCSVPath     string
	CompanyJSONPath    string
	DetailCSVPath      string
	DetailTSVPath      string
	MediaCatalogPath   string
	ReviewsCatalogPath string
	MediaRootDir       string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ChromeBin string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DirectoryURL: getEnv("DIRECTORY_URL", "https://www.energysage.com/local-data/solar-companies/ma/"),
		ListingPages: getEnvInt("LISTING_PAGES", 8),

		NavTimeoutSec:      getEnvInt("NAV_TIMEOUT_SEC", 15),
		SettleDelayMs:      getEnvInt("SETTLE_DELAY_MS", 2000),
		CompanyDelayMs:     getEnvInt("COMPANY_DELAY_MS", 1500),
		DownloadTimeoutSec: getEnvInt("DOWNLOAD_TIMEOUT_SEC", 10),
		MaxReviewPages:     getEnvInt("MAX_REVIEW_PAGES", 100),

		CompanyCSVPath:     getEnv("COMPANY_CSV_PATH", "massachusetts_solar_installers.csv"),
		CompanyJSONPath:    getEnv("COMPANY_JSON_PATH", "massachusetts_solar_installers.json"),
		DetailCSVPath:      getEnv("DETAIL_CSV_PATH", "test_installer_details.csv"),
		DetailTSVPath:      getEnv("DETAIL_TSV_PATH", "test_installer_details.tsv"),
		MediaCatalogPath:   getEnv("MEDIA_CATALOG_PATH", "media_catalog.csv"),
		ReviewsCatalogPath: getEnv("REVIEWS_CATALOG_PATH", "reviews_catalog.csv"),
		MediaRootDir:       getEnv("MEDIA_ROOT_DIR", "images"),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "installer_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ChromeBin: getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
