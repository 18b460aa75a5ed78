package energysage

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"energysage-scraper/models"
	"energysage-scraper/services"
)

// Selector fallback chains for the profile page, tried in order of
// decreasing specificity. First chain entry that matches wins.
var (
	descriptionSelectors = []string{
		"div#collapsablePitch",
		"div.supplier-description",
		"div.company-description",
		"div.about-description",
		"div.supplier-pitch",
	}
	statesSelectors = []string{
		"div.states-served",
		"div.service-states",
		"div.states",
		"div.coverage-area",
	}
	headquartersSelectors = []string{
		"div.headquarters",
		"div.company-address",
		"div.address",
		"div.location",
	}
	logoSelectors = []string{
		"img.company-logo",
		"img.supplier-logo",
		"img[alt*='logo']",
		"header img",
	}
)

// ExtractProfileFields pulls every statically-extractable field from a
// rendered profile page. Pure function over the parsed document; missing
// fields degrade to empty/default values, never errors.
func ExtractProfileFields(doc *goquery.Document, pageURL string) models.ProfileFields {
	fields := models.ProfileFields{
		Headquarters: "N/A",
	}

	fields.Description = extractDescription(doc)
	fields.StatesServed = extractStatesServed(doc)
	if hq := extractHeadquarters(doc); hq != "" {
		fields.Headquarters = hq
	}
	fields.OtherLocations = extractOtherLocations(doc, fields.Headquarters)
	fields.LogoURL = extractLogoURL(doc, pageURL)

	return fields
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range descriptionSelectors {
		if div := doc.Find(sel).First(); div.Length() > 0 {
			if text := services.Normalize(div.Text()); text != "" {
				return text
			}
		}
	}
	return "N/A"
}

func extractStatesServed(doc *goquery.Document) []string {
	for _, sel := range statesSelectors {
		div := doc.Find(sel).First()
		if div.Length() == 0 {
			continue
		}

		// Prefer state links inside the container.
		var states []string
		div.Find("a").Each(func(_ int, a *goquery.Selection) {
			if text := services.Normalize(a.Text()); text != "" {
				states = append(states, text)
			}
		})
		if len(states) > 0 {
			return services.SortedUniqueStates(states)
		}

		// Otherwise a comma-separated text blob.
		if text := services.Normalize(div.Text()); strings.Contains(text, ",") {
			return services.SortedUniqueStates(strings.Split(text, ","))
		}
	}

	// Last resort: scan the page text for whole-word state abbreviations.
	return services.StateAbbreviationScan(doc.Text())
}

func extractHeadquarters(doc *goquery.Document) string {
	for _, sel := range headquartersSelectors {
		div := doc.Find(sel).First()
		if div.Length() == 0 {
			continue
		}

		// The site nests the clean address inside li.supplier-address, with
		// a desktop-only paragraph carrying the best-formatted variant.
		if li := div.Find("li.supplier-address").First(); li.Length() > 0 {
			p := li.Find("p.d-none.d-md-block").First()
			if p.Length() == 0 {
				p = li.Find("p").First()
			}
			if p.Length() > 0 {
				if text := services.Normalize(p.Text()); text != "" {
					return text
				}
			}
		}

		if text := services.Normalize(div.Text()); text != "" {
			return text
		}
	}
	return ""
}

func extractOtherLocations(doc *goquery.Document, headquarters string) []string {
	seen := make(map[string]struct{})
	var locations []string

	add := func(raw string) {
		text := services.Normalize(raw)
		// Strip inline SVG path data leaking out of icon markup.
		if idx := strings.Index(text, "M8.604"); idx >= 0 {
			text = strings.TrimSpace(text[:idx])
		}
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		locations = append(locations, text)
	}

	heading := findOtherLocationsHeading(doc)
	if heading != nil {
		list := followingList(heading)
		if list != nil {
			list.Find("li").Each(func(_ int, li *goquery.Selection) {
				p := li.Find("p.d-none.d-md-block").First()
				if p.Length() == 0 {
					p = li.Find("p.my-0").First()
				}
				if p.Length() > 0 {
					add(p.Text())
					return
				}
				add(li.Text())
			})
		}

		// No list at all: walk forward through sibling paragraphs/divs.
		if len(locations) == 0 {
			heading.NextAll().FilterFunction(func(i int, s *goquery.Selection) bool {
				return s.Is("p") || s.Is("div")
			}).EachWithBreak(func(i int, s *goquery.Selection) bool {
				add(s.Text())
				return i < 4
			})
		}
	}

	// Alternative: repeated address elements, first one is the headquarters.
	if len(locations) == 0 {
		addresses := doc.Find("li.supplier-address")
		if addresses.Length() > 1 {
			addresses.Slice(1, addresses.Length()).Each(func(_ int, li *goquery.Selection) {
				p := li.Find("p.d-none.d-md-block").First()
				if p.Length() == 0 {
					p = li.Find("p").First()
				}
				if p.Length() > 0 {
					add(p.Text())
				}
			})
		}
	}

	return locations
}

// findOtherLocationsHeading locates the "Other Locations" section marker:
// an h3 whose text mentions it, or a container with a known class.
func findOtherLocationsHeading(doc *goquery.Document) *goquery.Selection {
	var heading *goquery.Selection

	doc.Find("h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(h.Text(), "Other Locations") {
			heading = h
			return false
		}
		return true
	})
	if heading != nil {
		return heading
	}

	for _, sel := range []string{".other-locations", ".locations", ".branches"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// followingList finds the location list attached to a heading: the next
// ul.list-unstyled sibling, any following ul, or a ul inside the parent.
func followingList(heading *goquery.Selection) *goquery.Selection {
	if list := heading.NextAllFiltered("ul.list-unstyled").First(); list.Length() > 0 {
		return list
	}
	if list := heading.NextAllFiltered("ul").First(); list.Length() > 0 {
		return list
	}
	if list := heading.Find("ul.list-unstyled").First(); list.Length() > 0 {
		return list
	}
	if list := heading.Find("ul").First(); list.Length() > 0 {
		return list
	}
	parent := heading.Parent()
	if parent.Length() > 0 {
		if list := parent.Find("ul.list-unstyled").First(); list.Length() > 0 {
			return list
		}
		if list := parent.NextAllFiltered("ul").First(); list.Length() > 0 {
			return list
		}
	}
	return nil
}

func extractLogoURL(doc *goquery.Document, pageURL string) string {
	for _, sel := range logoSelectors {
		img := doc.Find(sel).First()
		if img.Length() == 0 {
			continue
		}
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src != "" {
			return resolveURL(pageURL, src)
		}
	}
	return ""
}

// resolveURL makes a possibly-relative href absolute against the page URL.
func resolveURL(pageURL, href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
