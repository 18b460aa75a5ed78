package energysage

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"energysage-scraper/models"
	"energysage-scraper/utils"
)

// MediaSaver downloads gallery media with a bounded-time fetch, deduplicates
// by content hash and persists files plus a per-company manifest. Every
// network or per-item error is logged and skips only that item.
type MediaSaver struct {
	client  *http.Client
	rootDir string
	logger  *utils.Logger

	// now is the clock used for media id generation; swapped in tests.
	now func() time.Time
}

// NewMediaSaver creates a MediaSaver writing under rootDir.
func NewMediaSaver(rootDir string, downloadTimeoutSec int, logger *utils.Logger) *MediaSaver {
	return &MediaSaver{
		client:  &http.Client{Timeout: time.Duration(downloadTimeoutSec) * time.Second},
		rootDir: rootDir,
		logger:  logger,
		now:     time.Now,
	}
}

// ExtractGallery processes a rendered gallery page: collects media elements,
// classifies them, downloads the bytes and writes the manifest. The gallery
// page itself has already been navigated to; galleryURL is its address, used
// to resolve relative media sources.
func (ms *MediaSaver) ExtractGallery(doc *goquery.Document, galleryURL, companyID, companyName string) []models.MediaItem {
	companyFolder := filepath.Join(ms.rootDir,
		fmt.Sprintf("%s_%s", companyID, strings.ReplaceAll(companyName, " ", "_")))
	imagesFolder := filepath.Join(companyFolder, "images")
	videosFolder := filepath.Join(companyFolder, "videos")

	for _, dir := range []string{imagesFolder, videosFolder} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ms.logger.Error("[gallery] Could not create media folder %s: %v", dir, err)
			return nil
		}
	}

	candidates := collectMediaElements(doc)
	ms.logger.Info("[gallery] Found %d potential media items", len(candidates))

	hashes := make(map[[sha256.Size]byte]struct{})
	var saved []models.MediaItem

	for index, candidate := range candidates {
		mediaID := fmt.Sprintf("%s_%d_%d", companyID, ms.now().Unix(), index+1)

		switch candidate.kind {
		case "image":
			if item, ok := ms.processImage(candidate.sel, galleryURL, mediaID, imagesFolder, videosFolder, hashes); ok {
				saved = append(saved, item)
			}
		case "video":
			if item, ok := ms.processVideo(candidate.sel, mediaID, videosFolder, hashes); ok {
				saved = append(saved, item)
			}
		}
	}

	if len(saved) > 0 {
		ms.writeManifest(companyFolder, saved)
	} else {
		ms.logger.Warn("[gallery] No media items were successfully processed")
	}

	return saved
}

func (ms *MediaSaver) processImage(sel *goquery.Selection, galleryURL, mediaID, imagesFolder, videosFolder string, hashes map[[sha256.Size]byte]struct{}) (models.MediaItem, bool) {
	imgURL := imageSourceURL(sel, galleryURL)
	if imgURL == "" {
		ms.logger.Debug("[gallery] No source URL for image %s, skipping", mediaID)
		return models.MediaItem{}, false
	}

	// A YouTube thumbnail URL means this "image" is really a video reference.
	if ref, isVideo := matchYouTubeThumbnail(imgURL); isVideo {
		filename := fmt.Sprintf("%s_%s_%s.jpg", mediaID, ref.platform, ref.videoID)
		path := filepath.Join(videosFolder, filename)

		if !ms.fetchToFile(imgURL, path, hashes) {
			return models.MediaItem{}, false
		}

		return models.MediaItem{
			ID:           mediaID,
			Type:         "video",
			Platform:     ref.platform,
			VideoID:      ref.videoID,
			VideoURL:     ref.watchURL,
			ThumbnailURL: ref.thumbnailURL,
			LocalPath:    path,
			Filename:     filename,
		}, true
	}

	filename := imageFilename(mediaID, imgURL)
	path := filepath.Join(imagesFolder, filename)

	if !ms.fetchToFile(imgURL, path, hashes) {
		return models.MediaItem{}, false
	}

	return models.MediaItem{
		ID:        mediaID,
		Type:      "image",
		URL:       imgURL,
		LocalPath: path,
		Filename:  filename,
	}, true
}

func (ms *MediaSaver) processVideo(sel *goquery.Selection, mediaID, videosFolder string, hashes map[[sha256.Size]byte]struct{}) (models.MediaItem, bool) {
	ref, ok := classifyVideoElement(sel)
	if !ok {
		return models.MediaItem{}, false
	}

	ms.logger.Info("[gallery] Found %s video (ID: %s): %s", ref.platform, ref.videoID, ref.watchURL)

	item := models.MediaItem{
		ID:           mediaID,
		Type:         "video",
		Platform:     ref.platform,
		VideoID:      ref.videoID,
		VideoURL:     ref.watchURL,
		ThumbnailURL: ref.thumbnailURL,
	}

	// Vimeo's "thumbnail" is an API endpoint, not an image; only YouTube
	// thumbnails are actually fetchable.
	if ref.platform == "youtube" && ref.thumbnailURL != "" {
		filename := fmt.Sprintf("%s_%s_%s.jpg", mediaID, ref.platform, ref.videoID)
		path := filepath.Join(videosFolder, filename)
		if ms.fetchToFile(ref.thumbnailURL, path, hashes) {
			item.LocalPath = path
			item.Filename = filename
		}
	}

	// The video reference is kept even when the thumbnail download fails.
	return item, true
}

// fetchToFile downloads url into path. Returns false when the fetch fails,
// the response is non-200, or the content is a byte-identical duplicate of
// something already saved this run.
func (ms *MediaSaver) fetchToFile(url, path string, hashes map[[sha256.Size]byte]struct{}) bool {
	resp, err := ms.client.Get(url)
	if err != nil {
		ms.logger.Warn("[gallery] Download failed for %s: %v", url, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ms.logger.Warn("[gallery] Download failed for %s: HTTP status %d", url, resp.StatusCode)
		return false
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		ms.logger.Warn("[gallery] Reading body failed for %s: %v", url, err)
		return false
	}

	digest := sha256.Sum256(content)
	if _, dup := hashes[digest]; dup {
		ms.logger.Debug("[gallery] Skipping duplicate content from %s", url)
		return false
	}
	hashes[digest] = struct{}{}

	if err := os.WriteFile(path, content, 0644); err != nil {
		ms.logger.Error("[gallery] Writing %s failed: %v", path, err)
		return false
	}

	ms.logger.Debug("[gallery] Saved %s", path)
	return true
}

func (ms *MediaSaver) writeManifest(companyFolder string, items []models.MediaItem) {
	path := filepath.Join(companyFolder, "media_metadata.json")

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		ms.logger.Error("[gallery] Manifest marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		ms.logger.Error("[gallery] Manifest write failed: %v", err)
		return
	}
	ms.logger.Info("[gallery] Media metadata saved to %s", path)
}
