package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BotClient communicates with the Telegram bot's internal API. The bot is
// the only component with live visibility into group ownership and admin
// lists, so the verification gate treats any transport failure here as
// "probe unreachable" rather than guessing.
type BotClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewBotClient(baseURL string, log *zap.Logger) *BotClient {
	return &BotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// GroupInfo is the bot's live view of a group at probe time.
type GroupInfo struct {
	GroupID      int64   `json:"group_id"`
	Title        string  `json:"title"`
	Username     *string `json:"username,omitempty"`
	Description  string  `json:"description,omitempty"`
	MemberCount  int     `json:"member_count"`
	OwnerID      int64   `json:"owner_id"`
	AdminIDs     []int64 `json:"admin_ids"`
	BotIsAdmin   bool    `json:"bot_is_admin"`
	BotCanInvite bool    `json:"bot_can_invite"`
}

func (g *GroupInfo) IsAdmin(telegramUserID int64) bool {
	for _, id := range g.AdminIDs {
		if id == telegramUserID {
			return true
		}
	}
	return false
}

func (c *BotClient) GetGroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error) {
	url := fmt.Sprintf("%s/internal/groups/%d", c.baseURL, groupID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bot service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bot service returned %d: %s", resp.StatusCode, string(body))
	}

	var info GroupInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

type CheckOwnershipResult struct {
	IsOwner bool `json:"is_owner"`
	IsAdmin bool `json:"is_admin"`
}

func (c *BotClient) CheckOwnership(ctx context.Context, groupID, telegramUserID int64) (*CheckOwnershipResult, error) {
	url := fmt.Sprintf("%s/internal/groups/%d/check_owner?telegram_user_id=%d", c.baseURL, groupID, telegramUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bot service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bot service returned %d: %s", resp.StatusCode, string(body))
	}

	var result CheckOwnershipResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *BotClient) SendNotification(ctx context.Context, telegramUserID int64, text string) error {
	body, _ := json.Marshal(map[string]any{
		"telegram_user_id": telegramUserID,
		"text":             text,
	})

	url := fmt.Sprintf("%s/internal/notify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("failed to send bot notification", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("bot notification failed", zap.Int("status", resp.StatusCode))
	}
	return nil
}
