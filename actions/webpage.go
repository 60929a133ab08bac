package actions

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/DeabLabs/cannoli-sub001/fetch"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Webpage returns the built-in webpage action: fetch a URL, strip scripts
// and styling, and emit the page's readable text. Registered by default so
// search nodes work out of the box.
func Webpage() *Action {
	return &Action{
		Name: "webpage",
		Args: []ArgSpec{
			{Name: "fetcher", Category: CategoryFetcher},
			{Name: "url", Category: CategoryArg, Type: TypeString},
			{Name: "limit", Category: CategoryConfig, Type: TypeNumber, Optional: true},
		},
		Fn: fetchWebpage,
	}
}

func fetchWebpage(ctx context.Context, fetcher fetch.Fetcher, url string, limit int) (any, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("webpage: no fetcher available")
	}
	resp, err := fetcher.Fetch(ctx, fetch.Request{URL: url})
	if err != nil {
		return err, nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webpage: %s returned status %d", url, resp.StatusCode), nil
	}

	sanitized := bluemonday.UGCPolicy().Sanitize(resp.Body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized))
	if err != nil {
		return nil, fmt.Errorf("webpage: parsing %s: %w", url, err)
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.TrimSpace(doc.Text())
	text = blankLines.ReplaceAllString(text, "\n\n")
	if limit > 0 && len(text) > limit {
		text = text[:limit]
	}
	return text, nil
}
