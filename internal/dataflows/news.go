package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/CortexOffice/internal/metrics"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
	"github.com/dyike/CortexOffice/pkg/logger"
)

const (
	newsAPIBaseURL    = "https://newsapi.org/v2"
	googleNewsBaseURL = "https://news.google.com/rss"
	defaultPageSize   = 5
	userAgent         = "Mozilla/5.0 (compatible; CortexOffice/1.0)"
)

// NewsSource searches one news backend.
type NewsSource interface {
	Name() string
	Search(ctx context.Context, term string, pageSize int) ([]models.Article, error)
}

// NewsService turns a search term into the article digest handed to the research summary.
// Sources are tried in order; a term never fails, it degrades to a placeholder line.
type NewsService struct {
	sources  []NewsSource
	pageSize int
	log      *logger.Logger
}

func NewNewsService(pageSize int, sources ...NewsSource) *NewsService {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &NewsService{sources: sources, pageSize: pageSize, log: logger.Get().Named("news")}
}

// Digest renders the top articles for term, or a placeholder when none could be fetched.
func (s *NewsService) Digest(ctx context.Context, term string) string {
	term = strings.TrimSpace(term)
	var lastErr error
	for _, src := range s.sources {
		articles, err := src.Search(ctx, term, s.pageSize)
		metrics.RecordGatewayCall(src.Name(), "news", err)
		if err != nil {
			s.log.Warnw("news search failed", "source", src.Name(), "term", term, "error", err)
			lastErr = err
			continue
		}
		if len(articles) == 0 {
			return fmt.Sprintf("No relevant articles found for %s.", term)
		}
		parts := make([]string, 0, len(articles))
		for _, a := range articles {
			parts = append(parts, a.String())
		}
		return strings.Join(parts, "\n\n")
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no news source configured", errors.ErrExternalService)
	}
	return fmt.Sprintf("Error fetching news for %s: %v", term, lastErr)
}

// NewsAPIClient queries the newsapi.org everything endpoint.
type NewsAPIClient struct {
	client *resty.Client
	apiKey string
	cache  *CacheManager
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

func NewNewsAPIClient(apiKey, baseURL string, cache *CacheManager) *NewsAPIClient {
	if baseURL == "" {
		baseURL = newsAPIBaseURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", userAgent)

	return &NewsAPIClient{client: client, apiKey: apiKey, cache: cache}
}

func (n *NewsAPIClient) Name() string { return "newsapi" }

func (n *NewsAPIClient) Search(ctx context.Context, term string, pageSize int) ([]models.Article, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("%w: news api key not configured", errors.ErrInvalidInput)
	}
	params := map[string]string{
		"q":        term + " public traded company",
		"language": "en",
		"sortBy":   "relevancy",
		"pageSize": fmt.Sprint(pageSize),
	}

	var cached []models.Article
	if n.cache.Get("newsapi", "everything", params, &cached) {
		return cached, nil
	}

	var body newsAPIResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", n.apiKey).
		SetQueryParams(params).
		SetResult(&body).
		SetError(&body).
		Get("/everything")
	if err != nil {
		return nil, errors.External("newsapi", err)
	}
	if resp.StatusCode() != 200 || body.Status == "error" {
		return nil, errors.External("newsapi", fmt.Errorf("HTTP %d %s: %s", resp.StatusCode(), body.Code, body.Message))
	}

	articles := make([]models.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, models.Article{
			Title:       strings.TrimSpace(a.Title),
			Description: cleanHTMLContent(a.Description),
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	_ = n.cache.Set("newsapi", "everything", params, articles)
	return articles, nil
}

// GoogleNewsClient reads the Google News RSS search feed. It needs no API key.
type GoogleNewsClient struct {
	client *resty.Client
	cache  *CacheManager
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      struct {
		URL  string `xml:"url,attr"`
		Text string `xml:",chardata"`
	} `xml:"source"`
}

func NewGoogleNewsClient(baseURL string, cache *CacheManager) *GoogleNewsClient {
	if baseURL == "" {
		baseURL = googleNewsBaseURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", userAgent)
	return &GoogleNewsClient{client: client, cache: cache}
}

func (g *GoogleNewsClient) Name() string { return "google_news" }

func (g *GoogleNewsClient) Search(ctx context.Context, term string, pageSize int) ([]models.Article, error) {
	params := url.Values{}
	params.Set("q", term)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	var cached []models.Article
	if g.cache.Get("google_news_rss", "search", params.Encode(), &cached) {
		return cached, nil
	}

	resp, err := g.client.R().SetContext(ctx).SetQueryParamsFromValues(params).Get("/search")
	if err != nil {
		return nil, errors.External("google news", err)
	}
	if resp.StatusCode() != 200 {
		return nil, errors.External("google news", fmt.Errorf("HTTP error %d when fetching RSS feed", resp.StatusCode()))
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, errors.External("google news", fmt.Errorf("parse RSS: %w", err))
	}

	articles := make([]models.Article, 0, pageSize)
	for _, item := range feed.Channel.Items {
		if len(articles) >= pageSize {
			break
		}
		articles = append(articles, rssArticle(item))
	}
	_ = g.cache.Set("google_news_rss", "search", params.Encode(), articles)
	return articles, nil
}

func rssArticle(item rssItem) models.Article {
	published, err := time.Parse(time.RFC1123Z, item.PubDate)
	if err != nil {
		published, _ = time.Parse(time.RFC1123, item.PubDate)
	}
	source := item.Source.Text
	if source == "" && item.Source.URL != "" {
		if u, err := url.Parse(item.Source.URL); err == nil {
			source = u.Host
		}
	}
	return models.Article{
		Title:       strings.TrimSpace(item.Title),
		Description: cleanHTMLContent(item.Description),
		URL:         item.Link,
		Source:      source,
		PublishedAt: published,
	}
}

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// cleanHTMLContent strips markup from a feed description.
func cleanHTMLContent(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return strings.TrimSpace(htmlTagRegex.ReplaceAllString(htmlContent, ""))
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	if text == "" {
		return strings.TrimSpace(htmlTagRegex.ReplaceAllString(htmlContent, ""))
	}
	return text
}
