package energysage

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"energysage-scraper/config"
	"energysage-scraper/models"
	"energysage-scraper/services"
	"energysage-scraper/utils"
)

// Scraper drives the EnergySage directory through a single headless browser
// session. Navigation and clicking go through chromedp; all extraction runs
// over goquery documents parsed from rendered-DOM snapshots.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	visited *utils.URLSet
	pacer   *utils.Pacer
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		visited: utils.NewURLSet(),
		pacer:   utils.NewPacer(cfg.CompanyDelayMs),
	}
}

// NewBrowserContext builds the exec allocator for the run. The returned
// cancel must be called exactly once; it owns the browser process.
func (s *Scraper) NewBrowserContext(parent context.Context) (context.Context, context.CancelFunc) {
	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	s.logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)

	// Suppress chromedp log noise.
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelSilent()
		cancelAlloc()
	}
	return silentCtx, cancel
}

// Pace blocks until the configured inter-company delay has elapsed.
func (s *Scraper) Pace() { s.pacer.Wait() }

func (s *Scraper) settle() time.Duration {
	return time.Duration(s.cfg.SettleDelayMs) * time.Millisecond
}

// CollectListings walks the paginated directory list, gathering company
// name + profile URL pairs deduplicated by URL. A missing or unclickable
// next-page control halts the walk and returns what was gathered.
func (s *Scraper) CollectListings(allocCtx context.Context, baseURL string, maxPages int) []models.Listing {
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(maxPages+1)*time.Minute)
	defer cancelTimeout()

	var listings []models.Listing

	if err := chromedp.Run(ctx,
		chromedp.Navigate(baseURL),
		chromedp.Sleep(s.settle()),
	); err != nil {
		s.logger.Error("[listings] Could not load directory page %s: %v", baseURL, err)
		return listings
	}

	for page := 1; page <= maxPages; page++ {
		s.logger.Info("[listings] Processing page %d of %d", page, maxPages)

		type pair struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		var pairs []pair

		err := chromedp.Run(ctx,
			chromedp.Sleep(s.settle()),
			chromedp.Evaluate(`
				(function() {
					var results = [];
					var items = document.querySelectorAll('ul#paginated-list > li');
					for (var i = 0; i < items.length; i++) {
						var link = items[i].querySelector('a.d-block.font-weight-bold') ||
						           items[i].querySelector('a[href*="/supplier/"]') ||
						           items[i].querySelector('a');
						if (link && link.href) {
							results.push({
								name: (link.textContent || '').trim(),
								url:  link.href
							});
						}
					}
					return results;
				})()
			`, &pairs),
		)
		if err != nil {
			s.logger.Error("[listings] Page %d extraction failed: %v", page, err)
			break
		}

		added := 0
		for _, p := range pairs {
			if p.Name == "" || p.URL == "" {
				continue
			}
			if !s.visited.Add(p.URL) {
				continue
			}
			listings = append(listings, models.Listing{Name: p.Name, ProfileURL: p.URL})
			added++
		}
		s.logger.Info("[listings] Page %d: %d items, %d new (total %d)",
			page, len(pairs), added, len(listings))

		if page == maxPages {
			break
		}

		var clicked bool
		err = chromedp.Run(ctx,
			chromedp.Evaluate(`
				(function() {
					var btn = document.querySelector("button[data-pc-section='nextpagebutton']");
					if (!btn || btn.disabled) return false;
					btn.scrollIntoView({block: 'center'});
					btn.click();
					return true;
				})()
			`, &clicked),
			chromedp.Sleep(s.settle()),
		)
		if err != nil || !clicked {
			s.logger.Warn("[listings] Next-page button missing or unclickable, stopping at page %d", page)
			break
		}
	}

	s.logger.Info("[listings] Collected %d unique company profile links", len(listings))
	return listings
}

// FetchProfileDocument loads a profile page in a fresh tab and returns the
// parsed document plus the page title.
func (s *Scraper) FetchProfileDocument(allocCtx context.Context, profileURL string) (*goquery.Document, string, error) {
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(s.cfg.NavTimeoutSec+s.cfg.SettleDelayMs/1000+5)*time.Second)
	defer cancelTimeout()

	var html, title string
	err := chromedp.Run(ctx,
		chromedp.Navigate(profileURL),
		chromedp.Sleep(s.settle()),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, "", fmt.Errorf("load profile %s: %w", profileURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parse profile %s: %w", profileURL, err)
	}
	return doc, title, nil
}

// ScrapeGallery resolves the profile's gallery page and hands it to the
// MediaSaver. A profile without a gallery, or a gallery that times out,
// yields an empty result without error.
func (s *Scraper) ScrapeGallery(allocCtx context.Context, profileDoc *goquery.Document, profileURL, companyID, companyName string, saver *MediaSaver) []models.MediaItem {
	galleryURL := GalleryLink(profileDoc, profileURL)
	if galleryURL == "" {
		s.logger.Info("[gallery] No gallery link on %s", profileURL)
		return nil
	}

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(s.cfg.NavTimeoutSec)*time.Second)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(ctx,
		chromedp.Navigate(galleryURL),
		chromedp.Sleep(s.settle()),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		s.logger.Warn("[gallery] Gallery page %s did not load: %v", galleryURL, err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn("[gallery] Gallery page %s did not parse: %v", galleryURL, err)
		return nil
	}

	return saver.ExtractGallery(doc, galleryURL, companyID, companyName)
}

// ScrapeReviews runs the full review extraction for one company: aggregate
// rating and published count from the main page, then the click-driven
// pagination loop over the review widget.
func (s *Scraper) ScrapeReviews(allocCtx context.Context, profileDoc *goquery.Document, profileURL, companyID string) models.ReviewsResult {
	aggregate := ExtractAggregateRating(profileDoc)
	if aggregate > 0 {
		s.logger.Info("[reviews] Aggregate rating on main page: %.1f", aggregate)
	}
	publishedTotal := ExtractReviewCount(profileDoc)
	if publishedTotal > 0 {
		s.logger.Info("[reviews] Published review count: %d", publishedTotal)
	}

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// One deadline for the whole widget walk; a hang in any step ends the
	// company's review extraction, not the batch.
	ctx, cancelTimeout := context.WithTimeout(ctx, 5*time.Minute)
	defer cancelTimeout()

	// The site exposes reviews behind an offset-parameterized URL; loading
	// it directly skips a click and lands on the inline list when present.
	directURL := profileURL + "?limit=4&offset=0"
	if err := chromedp.Run(ctx,
		chromedp.Navigate(directURL),
		chromedp.Sleep(s.settle()),
	); err != nil {
		s.logger.Warn("[reviews] Review page %s did not load: %v", directURL, err)
		return FinalizeRatings(aggregate, nil)
	}

	s.openReviewWidget(ctx)

	src := &chromedpReviewSource{scraper: s}
	reviews := CollectReviews(ctx, src, companyID, publishedTotal, s.cfg.MaxReviewPages, s.logger)

	return FinalizeRatings(aggregate, reviews)
}

// openReviewWidget tries the trigger chain for a modal-opening button or a
// direct reviews link. Failure is fine: extraction then runs against the
// inline page.
func (s *Scraper) openReviewWidget(ctx context.Context) {
	var opened bool
	err := chromedp.Run(ctx,
		chromedp.Evaluate(reviewTriggerJS, &opened),
		chromedp.Sleep(s.settle()),
	)
	if err != nil {
		s.logger.Debug("[reviews] Trigger probe failed: %v", err)
		return
	}
	if opened {
		s.logger.Info("[reviews] Opened the review widget")
	} else {
		s.logger.Debug("[reviews] No review trigger found, extracting inline")
	}
}

// chromedpReviewSource adapts the live browser tab to the pagination loop.
type chromedpReviewSource struct {
	scraper *Scraper
}

func (c *chromedpReviewSource) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

func (c *chromedpReviewSource) NextPage(ctx context.Context) (bool, error) {
	var clicked bool
	err := chromedp.Run(ctx,
		chromedp.Evaluate(reviewNextPageJS, &clicked),
		chromedp.Sleep(c.scraper.settle()),
	)
	return clicked, err
}

// reviewTriggerJS locates and clicks the control that exposes the review
// list: modal-target attributes mentioning "review" first, then buttons
// whose visible text mentions reviews, then plain review/rating links.
// Clicks are programmatic after a scroll-into-view, bypassing hit-testing
// so overlay elements cannot swallow them.
const reviewTriggerJS = `
	(function() {
		function fire(el) {
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}

		var modalTriggers = document.querySelectorAll('[data-bs-target], [data-target], [data-toggle="modal"]');
		for (var i = 0; i < modalTriggers.length; i++) {
			var target = (modalTriggers[i].getAttribute('data-bs-target') || '') +
			             (modalTriggers[i].getAttribute('data-target') || '');
			if (target.toLowerCase().indexOf('review') !== -1) {
				return fire(modalTriggers[i]);
			}
		}

		var buttons = document.querySelectorAll('button, [role="button"]');
		for (var j = 0; j < buttons.length; j++) {
			var text = (buttons[j].textContent || '').toLowerCase();
			if (text.indexOf('review') !== -1 || text.indexOf('see all') !== -1) {
				return fire(buttons[j]);
			}
		}

		var anchors = document.querySelectorAll('a[href*="review"], a[href*="rating"]');
		if (anchors.length > 0) {
			return fire(anchors[0]);
		}

		return false;
	})()
`

// reviewNextPageJS advances the review pagination control: it reads the
// active page number (stripping a "(current)" suffix), prefers the sibling
// labeled active+1, and falls back to a generically-labeled next control.
const reviewNextPageJS = `
	(function() {
		function fire(el) {
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}

		var pagers = document.querySelectorAll('.pagination, [class*="pagination"], nav[aria-label*="page" i]');
		for (var i = 0; i < pagers.length; i++) {
			var pager = pagers[i];

			var activeEl = pager.querySelector('.active, [aria-current], .current');
			if (activeEl) {
				var activeText = (activeEl.textContent || '').replace('(current)', '').trim();
				var active = parseInt(activeText, 10);
				if (!isNaN(active)) {
					var controls = pager.querySelectorAll('a, button');
					for (var k = 0; k < controls.length; k++) {
						var label = (controls[k].textContent || '').trim();
						if (label === String(active + 1)) {
							return fire(controls[k]);
						}
					}
				}
			}

			var controls2 = pager.querySelectorAll('a, button');
			for (var m = 0; m < controls2.length; m++) {
				var t = (controls2[m].textContent || '').trim().toLowerCase();
				var aria = (controls2[m].getAttribute('aria-label') || '').toLowerCase();
				if (t === 'next' || t === '>' || t === '›' || aria.indexOf('next') !== -1) {
					if (controls2[m].disabled) return false;
					return fire(controls2[m]);
				}
			}
		}

		return false;
	})()
`

// findChromeBinary locates a Chrome/Chromium binary, preferring an explicit
// override from configuration.
func findChromeBinary(override string) string {
	if override != "" {
		return override
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// CompanyNameOrTitle resolves the company name for a detail scrape, falling
// back to the page title when the listing name is missing.
func CompanyNameOrTitle(listingName, pageTitle string) string {
	name := services.Normalize(listingName)
	if name == "" || name == "Unknown Company" {
		return services.CompanyNameFromTitle(pageTitle)
	}
	return name
}
