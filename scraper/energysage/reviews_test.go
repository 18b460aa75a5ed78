package energysage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"energysage-scraper/models"
	"energysage-scraper/utils"
)

func reviewCardHTML(name, date, text string, stars int) string {
	var sb strings.Builder
	sb.WriteString(`<div class="review-card">`)
	sb.WriteString("<p>" + text + "</p>")
	sb.WriteString(`<div class="text-gray-700">Posted by ` + name + ` on ` + date + `</div>`)
	sb.WriteString(`<div class="review-card__rating-overall-stars">`)
	for i := 0; i < stars; i++ {
		sb.WriteString(`<svg class="full"></svg>`)
	}
	sb.WriteString(`</div></div>`)
	return sb.String()
}

func reviewPageHTML(cards ...string) string {
	return "<html><body>" + strings.Join(cards, "") + "</body></html>"
}

// stubSource pages through pre-rendered HTML in place of a live browser tab.
type stubSource struct {
	pages     []string
	idx       int
	nextCalls int
}

func (s *stubSource) PageHTML(_ context.Context) (string, error) {
	return s.pages[s.idx], nil
}

func (s *stubSource) NextPage(_ context.Context) (bool, error) {
	s.nextCalls++
	if s.idx+1 < len(s.pages) {
		s.idx++
		return true, nil
	}
	return false, nil
}

func TestExtractAggregateRating(t *testing.T) {
	doc := mustDoc(t, `
		<html><body>
			<div class="supplier-rating">4.8 out of 5</div>
		</body></html>`)
	if got := ExtractAggregateRating(doc); got != 4.8 {
		t.Errorf("ExtractAggregateRating = %v; want 4.8", got)
	}

	empty := mustDoc(t, `<html><body><p>No ratings here</p></body></html>`)
	if got := ExtractAggregateRating(empty); got != 0 {
		t.Errorf("ExtractAggregateRating on page without rating = %v; want 0", got)
	}
}

func TestExtractReviewCount(t *testing.T) {
	doc := mustDoc(t, `
		<html><body>
			<h2>Customer feedback</h2>
			<span>127 Reviews</span>
		</body></html>`)
	if got := ExtractReviewCount(doc); got != 127 {
		t.Errorf("ExtractReviewCount = %d; want 127", got)
	}

	empty := mustDoc(t, `<html><body><span>Contact us</span></body></html>`)
	if got := ExtractReviewCount(empty); got != 0 {
		t.Errorf("ExtractReviewCount without count = %d; want 0", got)
	}
}

func TestExtractPageReviewsParsesCard(t *testing.T) {
	doc := mustDoc(t, reviewPageHTML(
		reviewCardHTML("John", "June 1, 2024",
			"Great installation experience from start to finish, highly recommended.", 5),
	))

	seen := utils.NewURLSet()
	seq := 0
	reviews := extractPageReviews(doc, "7", seen, &seq)

	if len(reviews) != 1 {
		t.Fatalf("got %d reviews; want 1", len(reviews))
	}
	r := reviews[0]
	if r.ReviewerName != "John" {
		t.Errorf("ReviewerName = %q; want John", r.ReviewerName)
	}
	if r.Date != "June 1, 2024" {
		t.Errorf("Date = %q; want June 1, 2024", r.Date)
	}
	if r.Rating != 5 {
		t.Errorf("Rating = %v; want 5", r.Rating)
	}
	if !strings.HasPrefix(r.Text, "Great installation experience") {
		t.Errorf("Text = %q", r.Text)
	}
	if !strings.HasPrefix(r.ID, "7_review_") {
		t.Errorf("ID = %q; want 7_review_ prefix", r.ID)
	}
}

func TestExtractPageReviewsDefaultsForMissingFields(t *testing.T) {
	doc := mustDoc(t, reviewPageHTML(
		`<div class="review-card"><p>Solid crew, clean wiring and a fast permit turnaround overall.</p></div>`,
	))

	seen := utils.NewURLSet()
	seq := 0
	reviews := extractPageReviews(doc, "7", seen, &seq)

	if len(reviews) != 1 {
		t.Fatalf("got %d reviews; want 1", len(reviews))
	}
	r := reviews[0]
	if r.ReviewerName != "Anonymous" {
		t.Errorf("ReviewerName = %q; want Anonymous", r.ReviewerName)
	}
	if r.Date != "Unknown" {
		t.Errorf("Date = %q; want Unknown", r.Date)
	}
	if r.Rating != 0 {
		t.Errorf("Rating = %v; want 0 before finalization", r.Rating)
	}
}

func TestSelectReviewItemsFallbackChain(t *testing.T) {
	// Nothing matches the primary selector; the second chain's .testimonial
	// entries are used instead.
	doc := mustDoc(t, `
		<html><body>
			<div class="testimonial"><p>Panels were up within two weeks and production beat the estimate.</p></div>
			<div class="testimonial"><p>Responsive service team that actually answers the phone quickly.</p></div>
		</body></html>`)

	items := selectReviewItems(activeReviewContainer(doc))
	if items.Length() != 2 {
		t.Errorf("selectReviewItems matched %d items; want 2 testimonials", items.Length())
	}
}

func TestSelectReviewItemsBareParagraphHeuristic(t *testing.T) {
	doc := mustDoc(t, `
		<html><body>
			<p>Hi</p>
			<p>The whole project was handled professionally from the site survey onward.</p>
		</body></html>`)

	items := selectReviewItems(activeReviewContainer(doc))
	if items.Length() != 1 {
		t.Errorf("selectReviewItems matched %d items; want 1 long paragraph", items.Length())
	}
}

func TestActiveReviewContainerPrefersOpenModal(t *testing.T) {
	doc := mustDoc(t, reviewPageHTML(
		reviewCardHTML("Page", "June 1, 2024", "Background page review that should not be read at all here.", 4),
		`<div role="dialog">`+
			reviewCardHTML("Modal", "June 2, 2024", "Review rendered inside the open dialog is the one that counts.", 5)+
			`</div>`,
	))

	seen := utils.NewURLSet()
	seq := 0
	reviews := extractPageReviews(doc, "7", seen, &seq)

	if len(reviews) != 1 {
		t.Fatalf("got %d reviews; want 1 from the modal", len(reviews))
	}
	if reviews[0].ReviewerName != "Modal" {
		t.Errorf("ReviewerName = %q; want Modal", reviews[0].ReviewerName)
	}
}

func TestCollectReviewsStopsAtPublishedTotal(t *testing.T) {
	var page1, page2 []string
	for i := 0; i < 5; i++ {
		page1 = append(page1, reviewCardHTML(
			fmt.Sprintf("Alice%d", i), "June 1, 2024",
			fmt.Sprintf("First page review number %d with enough words to pass the filter.", i), 5))
		page2 = append(page2, reviewCardHTML(
			fmt.Sprintf("Bob%d", i), "June 2, 2024",
			fmt.Sprintf("Second page review number %d with enough words to pass the filter.", i), 4))
	}
	src := &stubSource{pages: []string{reviewPageHTML(page1...), reviewPageHTML(page2...)}}

	reviews := CollectReviews(context.Background(), src, "7", 10, 100, newTestLogger())

	if len(reviews) != 10 {
		t.Errorf("collected %d reviews; want 10", len(reviews))
	}
	if src.nextCalls != 1 {
		t.Errorf("NextPage called %d times; want 1 (stop once the published total is reached)", src.nextCalls)
	}
}

func TestCollectReviewsDeduplicatesAcrossPages(t *testing.T) {
	cards := reviewPageHTML(
		reviewCardHTML("Alice", "June 1, 2024", "Smooth installation and the monitoring app works great too.", 5),
		reviewCardHTML("Bob", "June 2, 2024", "Fair pricing and no surprises on the final invoice at all.", 4),
	)
	// The widget re-renders the same two reviews on the "next" page.
	src := &stubSource{pages: []string{cards, cards}}

	reviews := CollectReviews(context.Background(), src, "7", 0, 100, newTestLogger())

	if len(reviews) != 2 {
		t.Errorf("collected %d reviews; want 2 (repeats collapse on fingerprint)", len(reviews))
	}
}

func TestCollectReviewsStopsAfterConsecutiveEmptyPages(t *testing.T) {
	empty := reviewPageHTML()
	src := &stubSource{pages: []string{empty, empty, empty, empty, empty}}

	reviews := CollectReviews(context.Background(), src, "7", 0, 100, newTestLogger())

	if len(reviews) != 0 {
		t.Errorf("collected %d reviews; want 0", len(reviews))
	}
	if src.nextCalls != consecutiveEmptyLimit-1 {
		t.Errorf("NextPage called %d times; want %d", src.nextCalls, consecutiveEmptyLimit-1)
	}
}

func TestCollectReviewsStopsWhenNoNextPage(t *testing.T) {
	src := &stubSource{pages: []string{reviewPageHTML(
		reviewCardHTML("Alice", "June 1, 2024", "Only one page of reviews exists for this small installer.", 5),
	)}}

	reviews := CollectReviews(context.Background(), src, "7", 0, 100, newTestLogger())

	if len(reviews) != 1 {
		t.Errorf("collected %d reviews; want 1", len(reviews))
	}
	if src.nextCalls != 1 {
		t.Errorf("NextPage called %d times; want 1", src.nextCalls)
	}
}

func TestFinalizeRatingsMeanFallback(t *testing.T) {
	reviews := []models.Review{
		{Rating: 4}, {Rating: 5}, {Rating: 5}, {Rating: 0},
	}

	result := FinalizeRatings(0, reviews)

	want := 14.0 / 3.0
	if math.Abs(result.AggregateRating-want) > 1e-9 {
		t.Errorf("AggregateRating = %v; want %v", result.AggregateRating, want)
	}
	if math.Abs(result.Reviews[3].Rating-want) > 1e-9 {
		t.Errorf("unrated review filled with %v; want aggregate %v", result.Reviews[3].Rating, want)
	}
}

func TestFinalizeRatingsAllUnknown(t *testing.T) {
	reviews := []models.Review{{Rating: 0}, {Rating: 0}}

	result := FinalizeRatings(0, reviews)

	if result.AggregateRating != 0 {
		t.Errorf("AggregateRating = %v; want 0 when nothing was measured", result.AggregateRating)
	}
	for i, r := range result.Reviews {
		if r.Rating != 5.0 {
			t.Errorf("review %d rating = %v; want 5.0 default", i, r.Rating)
		}
	}
}

func TestFinalizeRatingsKeepsPublishedAggregate(t *testing.T) {
	reviews := []models.Review{{Rating: 0}, {Rating: 5}}

	result := FinalizeRatings(4.2, reviews)

	if result.AggregateRating != 4.2 {
		t.Errorf("AggregateRating = %v; want published 4.2", result.AggregateRating)
	}
	if result.Reviews[0].Rating != 4.2 {
		t.Errorf("unrated review filled with %v; want 4.2", result.Reviews[0].Rating)
	}
}

func TestReviewFingerprintTruncatesText(t *testing.T) {
	long := strings.Repeat("a", 80)
	a := reviewFingerprint(models.Review{ReviewerName: "Alice", Date: "June 1, 2024", Text: long + "x"})
	b := reviewFingerprint(models.Review{ReviewerName: "Alice", Date: "June 1, 2024", Text: long + "y"})
	if a != b {
		t.Error("fingerprints differing only after the 50th character should match")
	}

	c := reviewFingerprint(models.Review{ReviewerName: "Bob", Date: "June 1, 2024", Text: long})
	if a == c {
		t.Error("different reviewers must not share a fingerprint")
	}
}
