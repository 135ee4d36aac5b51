// Package slack posts curation summaries to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vibeagent"
	"vibeagent/guard"
)

type Client struct {
	webhookURL string
	httpClient vibeagent.HTTPClient
}

var _ vibeagent.SlackClient = (*Client)(nil)

func NewClient(webhookURL string, httpClient vibeagent.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return guard.NewError(guard.KindRateLimit, "slack webhook throttled", map[string]any{"status": resp.StatusCode})
	default:
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}
}

// PostCuration sends the summary of one run.
func (c *Client) PostCuration(ctx context.Context, channel string, res vibeagent.Result) error {
	if err := c.PostMessage(ctx, channel, FormatCuration(res)); err != nil {
		return fmt.Errorf("post curation %s: %w", res.Report.RunID, err)
	}
	return nil
}

// FormatCuration renders a result as Slack mrkdwn: one line per recommendation with
// its top venue, followed by the run's quality figures.
func FormatCuration(res vibeagent.Result) string {
	c := res.Curation
	var b strings.Builder

	fmt.Fprintf(&b, "*Activity picks* (%s", c.Source)
	if c.Degraded {
		b.WriteString(", degraded")
	}
	b.WriteString(")\n")

	if len(c.Recommendations) == 0 {
		b.WriteString("_No recommendations._\n")
	}
	for i, rec := range c.Recommendations {
		fmt.Fprintf(&b, "%d. *%s* [%s, weather %s]", i+1, rec.Intent.Label, rec.Intent.Category, rec.WeatherSuitability)
		if len(rec.VerifiedVenues) > 0 {
			v := rec.VerifiedVenues[0]
			fmt.Fprintf(&b, " at %s", v.Name)
			if v.Rating > 0 {
				fmt.Fprintf(&b, " (%.1f)", v.Rating)
			}
		} else {
			b.WriteString(" - unverified")
		}
		b.WriteString("\n")
	}

	r := res.Report
	fmt.Fprintf(&b, "verified %.0f%% | diversity %.2f | confidence %.2f | fallbacks %d | run `%s`",
		r.VerificationRate*100, r.DiversityScore, r.ConfidenceScore, r.FallbackCount(), r.RunID)
	return b.String()
}
