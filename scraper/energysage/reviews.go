package energysage

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"energysage-scraper/models"
	"energysage-scraper/services"
	"energysage-scraper/utils"
)

// Review item chains, decreasing specificity. The bare-paragraph heuristic
// is applied separately when none of these match.
var reviewItemSelectors = []string{
	".review-card",
	".review, [id*='review'], .testimonial, .reviews-container .review-item, .rating-list .review-entry",
}

var (
	aggregateRatingPattern = regexp.MustCompile(`(\d+\.\d+|\d+)\s*(?:/|out of)?`)
	reviewCountPattern     = regexp.MustCompile(`(?i)(\d+)\s*review`)
	numericRatingPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

	monthNames = `(?:January|February|March|April|May|June|July|August|September|October|November|December)`

	datedOnPattern  = regexp.MustCompile(`\bon\s+(` + monthNames + `\s+\d{1,2},\s+\d{4})`)
	bareDatePattern = regexp.MustCompile(`(` + monthNames + `\s+\d{1,2},\s+\d{4})`)

	postedByOnPattern    = regexp.MustCompile(`Posted by\s+(\w+)\s+on\b`)
	postedByLoosePattern = regexp.MustCompile(`Posted by\s+(.+?)(?:\s+on\b|\n|$)`)
)

// ExtractAggregateRating scans elements whose class suggests a rating and
// parses the first leading decimal or integer. 0 means not found.
func ExtractAggregateRating(doc *goquery.Document) float64 {
	var rating float64

	doc.Find(`.rating, .supplier-rating, .energysage-rating, [class*="rating"]`).
		EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text := services.Normalize(el.Text())
			m := aggregateRatingPattern.FindStringSubmatch(text)
			if m == nil {
				return true
			}
			val, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return true
			}
			rating = val
			return false
		})

	return rating
}

// ExtractReviewCount scans small text-bearing elements for an "<N> review"
// pattern. 0 means the published total is unknown.
func ExtractReviewCount(doc *goquery.Document) int {
	var count int

	doc.Find("span, a, p, small, h2, h3, button").
		EachWithBreak(func(_ int, el *goquery.Selection) bool {
			m := reviewCountPattern.FindStringSubmatch(el.Text())
			if m == nil {
				return true
			}
			n, err := strconv.Atoi(m[1])
			if err != nil || n == 0 {
				return true
			}
			count = n
			return false
		})

	return count
}

// reviewFingerprint composes the dedup key: reviewer + date + first 50
// characters of the text.
func reviewFingerprint(r models.Review) string {
	text := r.Text
	if len(text) > 50 {
		text = text[:50]
	}
	return r.ReviewerName + "|" + r.Date + "|" + text
}

// activeReviewContainer returns the region reviews are read from: an open
// modal dialog when present, otherwise the whole document.
func activeReviewContainer(doc *goquery.Document) *goquery.Selection {
	if modal := doc.Find(".modal.show, .modal.in, [role='dialog']").First(); modal.Length() > 0 {
		return modal
	}
	return doc.Selection
}

// selectReviewItems applies the review-item fallback chain inside the active
// container, ending with the bare-paragraph heuristic.
func selectReviewItems(container *goquery.Selection) *goquery.Selection {
	for _, sel := range reviewItemSelectors {
		if items := container.Find(sel); items.Length() > 0 {
			return items
		}
	}

	// Generic substring match on the class attribute.
	generic := container.Find("div, article").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return strings.Contains(strings.ToLower(class), "review")
	})
	if generic.Length() > 0 {
		return generic
	}

	// Bare paragraphs as a last resort.
	return container.Find("p").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return len(services.Normalize(s.Text())) >= 25
	})
}

// extractPageReviews pulls every review from the current page's active
// container. seen carries fingerprints across pages so re-rendered reviews
// collapse; ratings stay 0 ("unknown") until finalizeRatings runs.
func extractPageReviews(doc *goquery.Document, companyID string, seen *utils.URLSet, seq *int) []models.Review {
	var reviews []models.Review

	items := selectReviewItems(activeReviewContainer(doc))
	items.Each(func(_ int, item *goquery.Selection) {
		fullText := services.Normalize(item.Text())
		if len(fullText) < 20 {
			return
		}

		review := models.Review{
			ReviewerName: extractReviewer(item, fullText),
			Date:         extractReviewDate(item, fullText),
			Rating:       extractItemRating(item),
			Text:         extractReviewText(item, fullText),
		}
		if review.Text == "" {
			return
		}

		if !seen.Add(reviewFingerprint(review)) {
			return
		}

		*seq++
		review.ID = fmt.Sprintf("%s_review_%d_%d", companyID, time.Now().Unix(), *seq)
		reviews = append(reviews, review)
	})

	return reviews
}

// isAttributionLine reports whether a paragraph is reviewer attribution
// rather than review prose.
func isAttributionLine(text string) bool {
	return strings.HasPrefix(text, "Posted by") || strings.HasPrefix(text, "on ")
}

func extractReviewText(item *goquery.Selection, fullText string) string {
	// First paragraph of real prose.
	var text string
	item.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		candidate := services.Normalize(p.Text())
		if len(candidate) >= 25 && !isAttributionLine(candidate) {
			text = candidate
			return false
		}
		return true
	})
	if text != "" {
		return text
	}

	// Dedicated text container.
	if body := item.Find(".review-body, [class*='text']").First(); body.Length() > 0 {
		if candidate := services.Normalize(body.Text()); len(candidate) >= 20 {
			return candidate
		}
	}

	// Trim trailing attribution noise off the raw item text.
	runes := []rune(fullText)
	return strings.TrimSpace(string(runes[:len(runes)*80/100]))
}

func extractReviewDate(item *goquery.Selection, fullText string) string {
	if dateEl := item.Find("[class*='date'], time").First(); dateEl.Length() > 0 {
		if text := services.Normalize(dateEl.Text()); text != "" && len(text) < 30 {
			for _, prefix := range []string{"Posted on", "posted on", "Posted", "posted", "Date:", "date:", "on ", "Published", "published"} {
				text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
			}
			if text != "" {
				return text
			}
		}
	}

	if m := datedOnPattern.FindStringSubmatch(fullText); m != nil {
		return m[1]
	}
	if m := bareDatePattern.FindStringSubmatch(fullText); m != nil {
		return m[1]
	}
	return "Unknown"
}

func extractReviewer(item *goquery.Selection, fullText string) string {
	if m := postedByOnPattern.FindStringSubmatch(fullText); m != nil {
		return m[1]
	}

	if author := item.Find(".text-gray-700, [class*='author'], [class*='name'], [class*='poster'], [class*='reviewer']").First(); author.Length() > 0 {
		text := services.Normalize(author.Text())
		text = strings.TrimSpace(strings.TrimPrefix(text, "Posted by"))
		if idx := strings.Index(text, " on "); idx > 0 {
			text = strings.TrimSpace(text[:idx])
		}
		if text != "" && len(text) < 50 {
			return text
		}
	}

	if m := postedByLoosePattern.FindStringSubmatch(fullText); m != nil {
		name := strings.TrimSpace(m[1])
		if name != "" && len(name) < 50 {
			return name
		}
	}
	return "Anonymous"
}

func extractItemRating(item *goquery.Selection) float64 {
	// Numeric rating text first.
	if ratingEl := item.Find(".review-card__rating, [class*='rating']").First(); ratingEl.Length() > 0 {
		if m := numericRatingPattern.FindStringSubmatch(ratingEl.Text()); m != nil {
			if val, err := strconv.ParseFloat(m[1], 64); err == nil && val > 0 && val <= 5 {
				return val
			}
		}
	}

	// Then filled-star icon counting.
	if stars := item.Find(".review-card__rating-overall-stars").First(); stars.Length() > 0 {
		if full := stars.Find("svg.full").Length(); full > 0 {
			return float64(full)
		}
	}
	if container := item.Find("[class*='star'], [class*='rating']").First(); container.Length() > 0 {
		if full := container.Find("[class*='full'], [class*='filled'], .fa-star").Length(); full > 0 {
			return float64(full)
		}
	}

	return 0
}

// reviewPageSource abstracts the review UI being paged through: the current
// rendered page and the ability to advance to the next one. The chromedp
// session implements it; tests drive the loop with a stub.
type reviewPageSource interface {
	// PageHTML returns the rendered HTML of the current review page.
	PageHTML(ctx context.Context) (string, error)
	// NextPage advances to the next review page and waits for it to settle.
	// It returns false when no next-page control exists or it cannot be
	// clicked, which ends pagination without error.
	NextPage(ctx context.Context) (bool, error)
}

const consecutiveEmptyLimit = 3

// CollectReviews drives the pagination state machine over a review source.
// Stop conditions, checked in order on every iteration: three consecutive
// pages with zero new reviews, collected >= publishedTotal, no next-page
// control, and the maxPages hard cap.
func CollectReviews(ctx context.Context, src reviewPageSource, companyID string, publishedTotal, maxPages int, logger *utils.Logger) []models.Review {
	seen := utils.NewURLSet()
	seq := 0
	var reviews []models.Review
	consecutiveEmpty := 0

	for page := 1; ; page++ {
		html, err := src.PageHTML(ctx)
		if err != nil {
			logger.Warn("[reviews] Could not read review page %d: %v", page, err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			logger.Warn("[reviews] Could not parse review page %d: %v", page, err)
			break
		}

		pageReviews := extractPageReviews(doc, companyID, seen, &seq)
		reviews = append(reviews, pageReviews...)
		logger.Debug("[reviews] Page %d yielded %d new reviews (%d total)",
			page, len(pageReviews), len(reviews))

		if len(pageReviews) == 0 {
			consecutiveEmpty++
		} else {
			consecutiveEmpty = 0
		}

		if consecutiveEmpty >= consecutiveEmptyLimit {
			logger.Info("[reviews] %d consecutive empty pages, stopping", consecutiveEmptyLimit)
			break
		}
		if publishedTotal > 0 && len(reviews) >= publishedTotal {
			logger.Info("[reviews] Collected %d of %d published reviews, stopping",
				len(reviews), publishedTotal)
			break
		}
		advanced, err := src.NextPage(ctx)
		if err != nil {
			logger.Warn("[reviews] Next-page click failed: %v", err)
			break
		}
		if !advanced {
			logger.Info("[reviews] No next-page control found, stopping")
			break
		}
		if page >= maxPages {
			logger.Warn("[reviews] Hit the %d-page cap, stopping", maxPages)
			break
		}
	}

	return reviews
}

// FinalizeRatings applies the rating policy after pagination completes:
// when no aggregate was published, compute it as the mean of measured
// ratings; then replace every unknown (0) review rating with the aggregate,
// or 5.0 when the aggregate is also unknown. Defaulted ratings are
// fabricated values, not measurements.
func FinalizeRatings(aggregate float64, reviews []models.Review) models.ReviewsResult {
	if aggregate == 0 {
		var sum float64
		var rated int
		for _, r := range reviews {
			if r.Rating > 0 {
				sum += r.Rating
				rated++
			}
		}
		if rated > 0 {
			aggregate = sum / float64(rated)
		}
	}

	fallback := aggregate
	if fallback == 0 {
		fallback = 5.0
	}
	for i := range reviews {
		if reviews[i].Rating == 0 {
			reviews[i].Rating = fallback
		}
	}

	return models.ReviewsResult{AggregateRating: aggregate, Reviews: reviews}
}
