package energysage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Gallery link chain: specific gallery classes first, then any anchor that
// looks like it leads to a gallery page.
var galleryLinkSelectors = []string{
	"a.gallery-link",
	"a.btn.btn-primary.btn-sm.gallery-link",
	"a[href*='gallery']",
}

// Image element chains, decreasing specificity.
var galleryImageSelectors = []string{
	"div.gallery img, div.photo-gallery img, img.gallery-image",
	"img[src*='gallery'], img[src*='photo']",
	"img[src]",
}

const galleryVideoSelector = "video, iframe[src*='youtube'], iframe[src*='vimeo'], a[href*='youtube'], a[href*='vimeo']"

var (
	youtubeThumbPatterns = []*regexp.Regexp{
		regexp.MustCompile(`img\.youtube\.com/vi/([^/]+)/`),
		regexp.MustCompile(`i\.ytimg\.com/vi/([^/]+)/`),
	}
	youtubeEmbedPattern = regexp.MustCompile(`(?:embed|v)/([^/?]+)`)
	youtubeLinkPattern  = regexp.MustCompile(`(?:v=|v/|embed/|youtu\.be/)([^/?&]+)`)
	youtubeShortPattern = regexp.MustCompile(`youtu\.be/([^/?]+)`)
	vimeoEmbedPattern   = regexp.MustCompile(`video/(\d+)`)
	vimeoLinkPattern    = regexp.MustCompile(`vimeo\.com/(\d+)`)
)

// GalleryLink returns the absolute URL of the "see all" gallery page, or ""
// when the profile has no gallery. A missing gallery is not an error.
func GalleryLink(doc *goquery.Document, pageURL string) string {
	for _, sel := range galleryLinkSelectors {
		link := doc.Find(sel).First()
		if link.Length() == 0 {
			continue
		}
		if href, ok := link.Attr("href"); ok && href != "" {
			return resolveURL(pageURL, href)
		}
	}
	return ""
}

// mediaCandidate is one raw gallery element before classification.
type mediaCandidate struct {
	kind string // "image" or "video"
	sel  *goquery.Selection
}

// collectMediaElements gathers image and video elements from a gallery page,
// images via the fallback chain, videos via native tags, embeds and links.
func collectMediaElements(doc *goquery.Document) []mediaCandidate {
	var candidates []mediaCandidate

	for _, sel := range galleryImageSelectors {
		imgs := doc.Find(sel)
		if imgs.Length() == 0 {
			continue
		}
		imgs.Each(func(_ int, img *goquery.Selection) {
			candidates = append(candidates, mediaCandidate{kind: "image", sel: img})
		})
		break
	}

	doc.Find(galleryVideoSelector).Each(func(_ int, v *goquery.Selection) {
		candidates = append(candidates, mediaCandidate{kind: "video", sel: v})
	})

	return candidates
}

// videoRef identifies an external video reference.
type videoRef struct {
	platform     string
	videoID      string
	watchURL     string
	thumbnailURL string
}

// matchYouTubeThumbnail reports whether an image URL is really a YouTube
// thumbnail, and if so which video it belongs to.
func matchYouTubeThumbnail(imgURL string) (videoRef, bool) {
	for _, pattern := range youtubeThumbPatterns {
		if m := pattern.FindStringSubmatch(imgURL); m != nil {
			id := m[1]
			return videoRef{
				platform:     "youtube",
				videoID:      id,
				watchURL:     "https://www.youtube.com/watch?v=" + id,
				thumbnailURL: imgURL,
			}, true
		}
	}
	return videoRef{}, false
}

// classifyVideoElement extracts the platform and video id from an iframe's
// src or an anchor's href. Returns ok=false for unrecognized elements.
func classifyVideoElement(sel *goquery.Selection) (videoRef, bool) {
	if sel.Is("iframe") {
		src, _ := sel.Attr("src")
		switch {
		case strings.Contains(src, "youtube"):
			if m := youtubeEmbedPattern.FindStringSubmatch(src); m != nil {
				return newVideoRef("youtube", m[1]), true
			}
		case strings.Contains(src, "vimeo"):
			if m := vimeoEmbedPattern.FindStringSubmatch(src); m != nil {
				return newVideoRef("vimeo", m[1]), true
			}
		}
		return videoRef{}, false
	}

	if sel.Is("a") {
		href, _ := sel.Attr("href")
		switch {
		case strings.Contains(href, "youtu.be"):
			if m := youtubeShortPattern.FindStringSubmatch(href); m != nil {
				return newVideoRef("youtube", m[1]), true
			}
		case strings.Contains(href, "youtube"):
			if m := youtubeLinkPattern.FindStringSubmatch(href); m != nil {
				return newVideoRef("youtube", m[1]), true
			}
		case strings.Contains(href, "vimeo"):
			if m := vimeoLinkPattern.FindStringSubmatch(href); m != nil {
				return newVideoRef("vimeo", m[1]), true
			}
		}
	}

	return videoRef{}, false
}

func newVideoRef(platform, id string) videoRef {
	ref := videoRef{platform: platform, videoID: id}
	switch platform {
	case "youtube":
		ref.watchURL = "https://www.youtube.com/watch?v=" + id
		ref.thumbnailURL = fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", id)
	case "vimeo":
		ref.watchURL = "https://vimeo.com/" + id
		// Vimeo thumbnails need a secondary API call; record the endpoint
		// instead of an actual image URL.
		ref.thumbnailURL = fmt.Sprintf("https://vimeo.com/api/v2/video/%s/pictures", id)
	}
	return ref
}

// imageSourceURL resolves the best source URL for an image element. Icon or
// thumbnail URLs are swapped for a higher-resolution variant when the
// element carries a data-full attribute or its anchor parent links to one.
func imageSourceURL(sel *goquery.Selection, pageURL string) string {
	src, ok := sel.Attr("src")
	if !ok || src == "" {
		src, _ = sel.Attr("data-src")
	}
	if src == "" {
		return ""
	}
	src = resolveURL(pageURL, src)

	lower := strings.ToLower(src)
	if strings.Contains(lower, "icon") || strings.Contains(lower, "thumb") {
		full, ok := sel.Attr("data-full")
		if !ok || full == "" {
			if parent := sel.Parent(); parent.Is("a") {
				full, _ = parent.Attr("href")
			}
		}
		if full != "" {
			src = resolveURL(pageURL, full)
		}
	}

	return src
}

// imageFilename derives a filename from the URL's last path segment when it
// looks name-like, otherwise falls back to the generated media id.
func imageFilename(mediaID, imgURL string) string {
	parts := strings.Split(imgURL, "/")
	last := parts[len(parts)-1]
	if idx := strings.Index(last, "?"); idx >= 0 {
		last = last[:idx]
	}

	if len(last) > 5 && strings.Contains(last, ".") {
		base := last[:strings.LastIndex(last, ".")]
		return fmt.Sprintf("%s_%s.jpg", mediaID, base)
	}
	return mediaID + ".jpg"
}
