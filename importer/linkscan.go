package importer

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// The archive's listing HTML is not a stable schema; anchors show up in a
// thread form (id/T/#t), a bare-id form, and a query-parameter form.
var (
	threadLinkPattern = regexp.MustCompile(`^.*[0-9a-f-]+/T/#[tu]$`)
	directLinkPattern = regexp.MustCompile(`[0-9a-f-]+`)
	queryLinkPattern  = regexp.MustCompile(`^\?t=[0-9]+$`)

	messageTokenPattern = regexp.MustCompile(`[0-9a-f-]{10,}`)
)

// Obvious non-message assets linked from the listing page.
var skipLinkFragments = []string{
	"css", "js", "img", "favicon", "robots.txt", "help", "color", "mirror", "atom",
}

// ExtractMessageLinks scans an archive listing page for candidate message
// URLs, normalized against baseURL. Duplicate candidates collapse to a
// single entry; order is the document order of first appearance.
func ExtractMessageLinks(htmlContent, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		if threadLinkPattern.MatchString(href) ||
			queryLinkPattern.MatchString(href) ||
			directLinkPattern.MatchString(href) {
			hrefs = append(hrefs, href)
		}
	})

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	baseTrimmed := strings.TrimRight(baseURL, "/")

	var links []string
	for _, href := range hrefs {
		// Thread suffixes point at the same logical message.
		cleaned := strings.NewReplacer("/T/#t", "", "/T/#u", "").Replace(href)

		var full string
		switch {
		case strings.HasPrefix(cleaned, "?"):
			full = baseTrimmed + "/" + cleaned
		case strings.HasPrefix(cleaned, "/"):
			full = base.Scheme + "://" + base.Host + cleaned
		case !strings.HasPrefix(cleaned, "http"):
			full = baseTrimmed + "/" + cleaned
		default:
			full = cleaned
		}

		if isAssetLink(full) {
			continue
		}
		if !messageTokenPattern.MatchString(full) && !strings.Contains(full, "?t=") {
			continue
		}
		links = append(links, strings.TrimRight(full, "/"))
	}

	return lo.Uniq(links)
}

func isAssetLink(link string) bool {
	lower := strings.ToLower(link)
	for _, fragment := range skipLinkFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
