package dataflows

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
)

const (
	redditBaseURL   = "https://www.reddit.com"
	redditUserAgent = "CortexOffice/1.0 (research digest)"
	// post body is cut to this many runes in the digest
	redditExcerpt = 400
)

// RedditClient searches finance subreddits. It is the last news fallback and needs no key.
type RedditClient struct {
	client     *resty.Client
	cache      *CacheManager
	subreddits []string
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
	Over18     bool    `json:"over_18"`
}

var defaultSubreddits = []string{"stocks", "investing", "wallstreetbets", "StockMarket"}

func NewRedditClient(baseURL string, cache *CacheManager, subreddits ...string) *RedditClient {
	if baseURL == "" {
		baseURL = redditBaseURL
	}
	if len(subreddits) == 0 {
		subreddits = defaultSubreddits
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", redditUserAgent)
	return &RedditClient{client: client, cache: cache, subreddits: subreddits}
}

func (rc *RedditClient) Name() string { return "reddit" }

func (rc *RedditClient) Search(ctx context.Context, term string, pageSize int) ([]models.Article, error) {
	params := map[string]string{
		"q":           fmt.Sprintf("%s subreddit:%s", term, strings.Join(rc.subreddits, "+")),
		"sort":        "relevance",
		"t":           "week",
		"limit":       fmt.Sprint(pageSize * 2),
		"restrict_sr": "false",
	}

	var cached []models.Article
	if rc.cache.Get("reddit", "search", params, &cached) {
		return cached, nil
	}

	var listing redditListing
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		resp, err := rc.client.R().SetContext(ctx).SetQueryParams(params).SetResult(&listing).Get("/search.json")
		if err != nil {
			return err
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when searching Reddit", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, errors.External("reddit", err)
	}

	articles := make([]models.Article, 0, pageSize)
	for _, child := range listing.Data.Children {
		if len(articles) >= pageSize {
			break
		}
		// t3 is a link post
		if child.Kind != "t3" || child.Data.Stickied || child.Data.Over18 {
			continue
		}
		articles = append(articles, redditArticle(child.Data))
	}
	_ = rc.cache.Set("reddit", "search", params, articles)
	return articles, nil
}

func redditArticle(p redditPost) models.Article {
	desc := strings.Join(strings.Fields(html.UnescapeString(p.Selftext)), " ")
	if r := []rune(desc); len(r) > redditExcerpt {
		desc = string(r[:redditExcerpt]) + "..."
	}
	if desc == "" {
		desc = fmt.Sprintf("r/%s post with score %d", p.Subreddit, p.Score)
	}
	link := p.URL
	if p.Permalink != "" {
		link = redditBaseURL + p.Permalink
	}
	return models.Article{
		Title:       strings.TrimSpace(html.UnescapeString(p.Title)),
		Description: desc,
		URL:         link,
		Source:      "r/" + p.Subreddit,
		PublishedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
	}
}
