// Package tme scrapes the public t.me preview page of a group. It is a
// cross-check signal for listings, not an authority: the bot probe owns
// ownership and admin facts, this parser only catches obvious drift in
// the public metadata (title, member count) without spending bot API
// quota.
package tme

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type GroupPreview struct {
	Username    string    `json:"username"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	MemberCount *int      `json:"member_count,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type Parser struct {
	httpClient *http.Client
	log        *zap.Logger
	maxRetries int
	baseURL    string
}

func NewParser(timeoutMS, maxRetries int, log *zap.Logger) *Parser {
	return &Parser{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		log:        log,
		maxRetries: maxRetries,
		baseURL:    "https://t.me",
	}
}

func (p *Parser) FetchPreview(ctx context.Context, username string) (*GroupPreview, error) {
	url := fmt.Sprintf("%s/%s", p.baseURL, strings.TrimPrefix(username, "@"))

	var doc *goquery.Document
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		return nil, lastErr
	}

	preview := &GroupPreview{
		Username:  strings.TrimPrefix(username, "@"),
		FetchedAt: time.Now(),
	}

	preview.Title = strings.TrimSpace(doc.Find(".tgme_page_title").First().Text())
	preview.Description = strings.TrimSpace(doc.Find(".tgme_page_description").First().Text())

	// "12 345 members, 678 online"
	extra := strings.ToLower(strings.TrimSpace(doc.Find(".tgme_page_extra").First().Text()))
	if strings.Contains(extra, "member") || strings.Contains(extra, "subscriber") {
		if n := parseCount(extra); n > 0 {
			preview.MemberCount = &n
		}
	}

	if preview.Title == "" {
		return nil, fmt.Errorf("no public preview for %q", username)
	}
	return preview, nil
}

var countRE = regexp.MustCompile(`[\d,.]+[KkMm]?`)

func parseCount(text string) int {
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, ",", "")

	match := countRE.FindString(text)
	if match == "" {
		return 0
	}

	multiplier := 1
	if strings.HasSuffix(match, "K") || strings.HasSuffix(match, "k") {
		multiplier = 1000
		match = match[:len(match)-1]
	} else if strings.HasSuffix(match, "M") || strings.HasSuffix(match, "m") {
		multiplier = 1000000
		match = match[:len(match)-1]
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return int(f * float64(multiplier))
}
