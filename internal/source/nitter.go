package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"tweetbridge/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// defaultRateLimitPause is used when a 429 response carries no Retry-After.
const defaultRateLimitPause = 15 * time.Minute

var (
	statusIDRe = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	imgSrcRe   = regexp.MustCompile(`<img[^>]+src="([^"]+)"`)
)

// Nitter reads a user's timeline through a Nitter instance's RSS endpoint.
// The feed identifier is the lowercased handle without the leading @.
type Nitter struct {
	client  HTTPClient
	baseURL string
}

// NewNitter creates a Nitter source for the given instance base URL.
func NewNitter(client HTTPClient, baseURL string) *Nitter {
	return &Nitter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ResolveFeed checks that a handle exists upstream and returns its feed ID.
func (n *Nitter) ResolveFeed(ctx context.Context, name string) (string, error) {
	handle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
	if handle == "" || strings.ContainsAny(handle, "/ ") {
		return "", ErrNotFound
	}

	resp, err := n.get(ctx, handle)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return handle, nil
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", classifyStatus(resp)
	}
}

// FetchRecent downloads and parses the feed's RSS, newest items first.
func (n *Nitter) FetchRecent(ctx context.Context, feedID string) ([]model.Item, error) {
	resp, err := n.get(ctx, feedID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, classifyStatus(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("parse feed: %w", err)}
	}

	items := make([]model.Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		item, ok := mapItem(feedID, fi)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (n *Nitter) get(ctx context.Context, handle string) (*http.Response, error) {
	url := fmt.Sprintf("%s/%s/rss", n.baseURL, handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FatalError{Reason: "build request", Err: err}
	}
	req.Header.Set("User-Agent", "TweetBridgeBot/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: fmt.Errorf("http get: %w", err)}
	}
	return resp, nil
}

func classifyStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitedError{ResetAt: resetTime(resp)}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &FatalError{Reason: fmt.Sprintf("upstream rejected request with status %d", resp.StatusCode)}
	case http.StatusNotFound, http.StatusGone:
		return &FatalError{Reason: "feed no longer exists upstream"}
	default:
		return &TransientError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// resetTime reads Retry-After as either a delay in seconds or an HTTP date.
func resetTime(resp *http.Response) time.Time {
	raw := resp.Header.Get("Retry-After")
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	if t, err := http.ParseTime(raw); err == nil {
		return t
	}
	return time.Now().Add(defaultRateLimitPause)
}

// mapItem converts one RSS entry into a domain item. Entries whose link
// carries no status id are skipped: without an id they cannot be ordered or
// deduplicated.
func mapItem(feedID string, fi *gofeed.Item) (model.Item, bool) {
	m := statusIDRe.FindStringSubmatch(fi.Link)
	if m == nil {
		m = statusIDRe.FindStringSubmatch(fi.GUID)
	}
	if m == nil {
		return model.Item{}, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return model.Item{}, false
	}

	author := feedID
	if fi.DublinCoreExt != nil && len(fi.DublinCoreExt.Creator) > 0 {
		author = strings.TrimPrefix(fi.DublinCoreExt.Creator[0], "@")
	} else if fi.Author != nil && fi.Author.Name != "" {
		author = strings.TrimPrefix(fi.Author.Name, "@")
	}

	text := strings.TrimSpace(fi.Title)
	if text == "" {
		text = strings.TrimSpace(stripTags(fi.Description))
	}

	return model.Item{
		ID:     id,
		Author: author,
		Text:   text,
		Media:  mediaURLs(fi),
	}, true
}

// mediaURLs collects image URLs from enclosures and from img tags embedded
// in the item description, preserving order and dropping duplicates.
func mediaURLs(fi *gofeed.Item) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, enc := range fi.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			add(enc.URL)
		}
	}
	for _, m := range imgSrcRe.FindAllStringSubmatch(fi.Description, -1) {
		add(m[1])
	}
	return urls
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 16384))
}
