package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/malwarebo/statsbot/utils"
)

const apiBase = "https://discord.com/api/v10"

// GuildCounts is the slice of guild state the stats service cares about.
type GuildCounts struct {
	MemberCount int `json:"approximate_member_count"`
	OnlineCount int `json:"approximate_presence_count"`
	BanCount    int `json:"-"`
}

// Client is a minimal Discord REST client. The gateway (websocket) side of
// Discord is deliberately out of scope; everything here is plain HTTP.
type Client struct {
	token      string
	httpClient *http.Client
	logger     *utils.Logger
}

func NewClient(token string) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     utils.NewLogger("discord"),
	}
}

// FetchGuildCounts returns approximate member/presence counts plus the
// current ban count for a guild.
func (c *Client) FetchGuildCounts(ctx context.Context, guildID string) (*GuildCounts, error) {
	var counts GuildCounts
	path := fmt.Sprintf("/guilds/%s?with_counts=true", guildID)
	if err := c.get(ctx, path, &counts); err != nil {
		return nil, err
	}

	bans, err := c.fetchBanCount(ctx, guildID)
	if err != nil {
		// Ban list needs a separate permission; counts without it are still
		// useful.
		c.logger.Warn(ctx, "Failed to fetch ban count", map[string]interface{}{
			"guild_id": guildID,
			"error":    err.Error(),
		})
	} else {
		counts.BanCount = bans
	}

	return &counts, nil
}

func (c *Client) fetchBanCount(ctx context.Context, guildID string) (int, error) {
	var bans []struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := c.get(ctx, fmt.Sprintf("/guilds/%s/bans?limit=1000", guildID), &bans); err != nil {
		return 0, err
	}
	return len(bans), nil
}

// RenameChannel updates a channel's name. Discord rate limits channel
// renames aggressively; a 429 here is surfaced as a RateLimitedError so the
// caller can reschedule.
func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, apiBase+"/channels/"+channelID, bytes.NewReader(body))
	if err != nil {
		return err
	}

	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bot "+c.token)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
		return &utils.RateLimitedError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &utils.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
