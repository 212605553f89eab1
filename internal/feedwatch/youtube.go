package feedwatch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

// YouTubeClient fetches a channel's upload feed (Atom). The feed ID is the
// channel ID (UC...).
type YouTubeClient struct {
	http    *http.Client
	feedURL string
}

type YouTubeOption func(*YouTubeClient)

// WithFeedURL overrides the feed endpoint (used in tests).
func WithFeedURL(u string) YouTubeOption {
	return func(c *YouTubeClient) { c.feedURL = u }
}

func NewYouTubeClient(opts ...YouTubeOption) *YouTubeClient {
	c := &YouTubeClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		feedURL: defaultFeedURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID   string `xml:"videoId"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Group     struct {
		Thumbnail struct {
			URL string `xml:"url,attr"`
		} `xml:"thumbnail"`
	} `xml:"group"`
}

func (c *YouTubeClient) LatestItem(ctx context.Context, channelID string) (Item, error) {
	u := c.feedURL + "?channel_id=" + url.QueryEscape(channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Item{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Item{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Item{}, fmt.Errorf("feed fetch failed: http=%d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return Item{}, fmt.Errorf("feed decode: %w", err)
	}
	if len(feed.Entries) == 0 {
		return Item{}, ErrNoItems
	}

	// Entries are newest-first.
	e := feed.Entries[0]
	published, err := time.Parse(time.RFC3339, e.Published)
	if err != nil {
		return Item{}, fmt.Errorf("feed entry published %q: %w", e.Published, err)
	}
	return Item{
		ID:           e.VideoID,
		Title:        e.Title,
		PublishedAt:  published,
		ThumbnailURL: e.Group.Thumbnail.URL,
	}, nil
}
