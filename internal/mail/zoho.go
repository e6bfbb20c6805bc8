package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/registry-preview/internal/config"
	"golang.org/x/oauth2"
)

// ZohoSender delivers mail through the Zoho Mail REST API, authenticating with a
// long-lived OAuth2 refresh token.
type ZohoSender struct {
	apiBase   string
	accountID string
	from      string
	tokens    oauth2.TokenSource
	client    *http.Client
}

func NewZohoSender(cfg config.MailConfig) *ZohoSender {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{"ZohoMail.messages.CREATE"},
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	// The token source refreshes on expiry; the background context outlives any one send.
	tokens := oauthConfig.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return &ZohoSender{
		apiBase:   strings.TrimRight(cfg.APIBase, "/"),
		accountID: cfg.AccountID,
		from:      cfg.FromAddress,
		tokens:    tokens,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type zohoMessage struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
	MailFormat  string `json:"mailFormat"`
}

func (s *ZohoSender) Send(ctx context.Context, msg Message) error {
	token, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to refresh Zoho access token: %w", err)
	}

	payload, err := json.Marshal(zohoMessage{
		FromAddress: s.from,
		ToAddress:   msg.To,
		Subject:     msg.Subject,
		Content:     msg.HTML,
		MailFormat:  "html",
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/messages", s.apiBase, s.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("failed to send email", "component", "mail", "to", msg.To, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("zoho mail API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		slog.Error("failed to send email", "component", "mail", "to", msg.To, "error", err)
		return err
	}

	slog.Info("sent email", "component", "mail", "to", msg.To, "subject", msg.Subject)
	return nil
}
