package edgar

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

// feedAccessionRe pulls the accession number out of an Atom entry id, which
// EDGAR formats as "urn:tag:sec.gov,2008:accession-number=NNNNNNNNNN-YY-NNNNNN".
var feedAccessionRe = regexp.MustCompile(`\d{10}-\d{2}-\d{6}`)

// FeedEntry is one filing from the EDGAR company Atom feed.
type FeedEntry struct {
	AccessionNumber string
	Form            string
	Title           string
	FilingDate      string // YYYY-MM-DD
	Link            string
}

// GetCompanyFeed fetches the company's recent-filings Atom feed. It is the
// fallback source of filing history when the submissions endpoint returns an
// empty recent set.
func (c *Client) GetCompanyFeed(ctx context.Context, cik string) ([]FeedEntry, error) {
	url := fmt.Sprintf("%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=&dateb=&owner=include&count=40&output=atom",
		c.archivesURL, PadCIK(cik))

	data, err := c.fetchRaw(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("edgar company feed for CIK %s: %w", cik, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse EDGAR atom feed: %w", err)
	}

	entries := make([]FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		e := FeedEntry{
			Title: item.Title,
			Link:  item.Link,
		}
		if item.Categories != nil && len(item.Categories) > 0 {
			e.Form = item.Categories[0]
		}
		if e.Form == "" {
			// Titles look like "10-K - Company Name".
			if i := strings.Index(item.Title, " - "); i > 0 {
				e.Form = item.Title[:i]
			}
		}
		if m := feedAccessionRe.FindString(item.GUID); m != "" {
			e.AccessionNumber = m
		} else if m := feedAccessionRe.FindString(item.Link); m != "" {
			e.AccessionNumber = m
		}
		if item.UpdatedParsed != nil {
			e.FilingDate = item.UpdatedParsed.Format("2006-01-02")
		} else if item.PublishedParsed != nil {
			e.FilingDate = item.PublishedParsed.Format("2006-01-02")
		}
		entries = append(entries, e)
	}
	return entries, nil
}
