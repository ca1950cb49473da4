package instagram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"igengage/pkg/errors"
	"igengage/pkg/logger"
	"igengage/pkg/ratelimit"
	"igengage/pkg/retry"
)

// Client talks to Instagram's web API for feed reads and engagement writes.
// All requests pass through the configured rate limiter; idempotent feed
// reads are retried with backoff, engagement mutations never are (a retried
// like or comment would double-act).
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	retryCfg   *retry.Config
	logger     logger.Logger
}

// NewClient creates a new Instagram API client
func NewClient(timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(30, time.Minute)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":           "*/*",
			"Accept-Language":  "en-US,en;q=0.9",
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          "https://www.instagram.com/",
		},
		baseURL:  BaseURL,
		limiter:  limiter,
		retryCfg: retry.DefaultConfig(),
		logger:   log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetCredentials configures the session cookie and CSRF token headers
func (c *Client) SetCredentials(sessionID, csrfToken string) {
	var cookies []string
	if sessionID != "" {
		cookies = append(cookies, fmt.Sprintf("sessionid=%s", sessionID))
	}
	if csrfToken != "" {
		cookies = append(cookies, fmt.Sprintf("csrftoken=%s", csrfToken))
		c.SetHeader("x-csrftoken", csrfToken)
	}
	if len(cookies) > 0 {
		c.SetHeader("Cookie", strings.Join(cookies, "; "))
	}
}

// SetBaseURL overrides the API base URL. Intended for tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SetRetryConfig overrides the retry policy for feed reads
func (c *Client) SetRetryConfig(cfg *retry.Config) {
	c.retryCfg = cfg
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	c.limiter.Wait()

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// getJSON performs a single GET request and decodes the JSON response.
// Retrying is left to the caller.
func (c *Client) getJSON(rawURL string, target interface{}) error {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	return c.decodeJSON(resp, target)
}

// postForm performs a POST request with form values and decodes the JSON
// response. Mutations are never retried.
func (c *Client) postForm(rawURL string, form url.Values, target interface{}) error {
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	return c.decodeJSON(resp, target)
}

// decodeJSON reads and unmarshals a response body
func (c *Client) decodeJSON(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		return &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		logger.LogRateLimit(c.logger, resp.Request.URL.Path, retryAfter)
		return &errors.Error{
			Type:    errors.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 500 {
			return &errors.Error{
				Type:    errors.ErrorTypeServerError,
				Message: "server error",
				Code:    resp.StatusCode,
			}
		}
		if resp.StatusCode >= 400 {
			return &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// endpoint rewrites a production URL onto the configured base URL
func (c *Client) endpoint(productionURL string) string {
	if c.baseURL == BaseURL {
		return productionURL
	}
	return strings.Replace(productionURL, BaseURL, c.baseURL, 1)
}

// FetchHashtagFeed fetches a page of the media feed for a hashtag
func (c *Client) FetchHashtagFeed(tag string, after string) (*HashtagResponse, error) {
	if !IsValidHashtag(tag) {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("invalid hashtag: %q", tag),
		}
	}

	feedURL := c.endpoint(GetHashtagFeedURL(tag, after))

	c.logger.DebugWithFields("fetching hashtag feed", map[string]interface{}{
		"tag": NormalizeHashtag(tag),
		"url": feedURL,
	})

	response, err := retry.DoWithResult(func() (*HashtagResponse, error) {
		var page HashtagResponse
		if err := c.getJSON(feedURL, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}, c.retryCfg)
	if err != nil {
		c.logger.ErrorWithFields("failed to fetch hashtag feed", map[string]interface{}{
			"tag":   tag,
			"error": err.Error(),
		})
		return nil, err
	}

	if response.RequiresToLogin {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "hashtag feed requires login",
		}
	}

	return response, nil
}

// LikePost likes a post by media ID
func (c *Client) LikePost(mediaID string) error {
	return c.mutate("like", c.endpoint(GetLikeURL(mediaID)), nil)
}

// FollowUser follows a user by ID
func (c *Client) FollowUser(userID string) error {
	return c.mutate("follow", c.endpoint(GetFollowURL(userID)), nil)
}

// UnfollowUser unfollows a user by ID
func (c *Client) UnfollowUser(userID string) error {
	return c.mutate("unfollow", c.endpoint(GetUnfollowURL(userID)), nil)
}

// CommentPost adds a comment to a post by media ID
func (c *Client) CommentPost(mediaID string, text string) error {
	form := url.Values{}
	form.Set("comment_text", text)
	return c.mutate("comment", c.endpoint(GetCommentURL(mediaID)), form)
}

// mutate performs an engagement POST and validates the action response
func (c *Client) mutate(action string, actionURL string, form url.Values) error {
	if form == nil {
		form = url.Values{}
	}

	var response ActionResponse
	if err := c.postForm(actionURL, form, &response); err != nil {
		c.logger.WarnWithFields("engagement request failed", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
		return err
	}

	if !response.OK() {
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("%s rejected with status %q", action, response.Status),
		}
	}

	return nil
}
