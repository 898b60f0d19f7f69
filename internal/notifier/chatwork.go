package notifier

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"TreasureWatch/internal/models"
	"TreasureWatch/pkg/config"
	"TreasureWatch/utils"
)

// ChatWork posts new-arrival alerts to a ChatWork room.
type ChatWork struct {
	Token      string
	RoomID     string
	APIBase    string
	ListingURL string
	Client     *http.Client

	log zerolog.Logger
}

// NewChatWork builds a client from config. listingURL is the watched page,
// included in the message so the room can jump straight to the listing.
func NewChatWork(conf config.ChatWorkConfig, listingURL string, log zerolog.Logger) *ChatWork {
	return &ChatWork{
		Token:      conf.Token,
		RoomID:     conf.RoomID,
		APIBase:    strings.TrimRight(conf.APIBase, "/"),
		ListingURL: listingURL,
		Client:     &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Send posts one message for item. Non-2xx responses are delivery failures.
func (c *ChatWork) Send(item models.Item) error {
	endpoint := fmt.Sprintf("%s/rooms/%s/messages", c.APIBase, c.RoomID)
	form := url.Values{"body": {c.buildMessage(item)}}

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build chatwork request: %w", err)
	}
	req.Header.Set("X-ChatWorkToken", c.Token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("chatwork request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chatwork responded %d", resp.StatusCode)
	}

	c.log.Info().Str("name", utils.Truncate(item.Name, 40)).Msg("chatwork notification sent")
	return nil
}

func (c *ChatWork) buildMessage(item models.Item) string {
	divider := strings.Repeat("━", 17)

	var b strings.Builder
	b.WriteString("[info]")
	b.WriteString(divider + "\n")
	b.WriteString("🔍 トレジャーファクトリー + 新着\n")
	b.WriteString(divider + "\n")
	b.WriteString("🔗 " + c.ListingURL + "\n")
	b.WriteString(divider + "\n\n")
	fmt.Fprintf(&b, "■ %s・%s円\n\n", item.Name, item.Price)
	if item.ItemURL != "" {
		fmt.Fprintf(&b, "📦 商品詳細: %s\n", item.ItemURL)
	}
	if item.ItemID != "" {
		fmt.Fprintf(&b, "🆔 商品ID: %s\n", item.ItemID)
	}
	fmt.Fprintf(&b, "⏰ 取得時刻: %s\n", item.ScrapedAt.Format("15:04:05"))
	b.WriteString("\nーーーーーーーーーー[/info]")
	return b.String()
}
