package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/makersrow/makersrow-backend/pkg/config"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid from address is required")
)

// Client sends templated transactional mail through SendGrid.
type Client struct {
	api  *sendgrid.Client
	from *mail.Email
}

// TemplateMessage is one templated send to one or more recipients.
type TemplateMessage struct {
	TemplateID string
	Recipients []string
	Data       map[string]any
}

// NewClient validates config and builds the SendGrid client.
func NewClient(ctx context.Context, cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}

	if logg != nil {
		logg.Info(ctx, "sendgrid client initialized")
	}

	return &Client{
		api:  sendgrid.NewSendClient(apiKey),
		from: mail.NewEmail("Makersrow", from),
	}, nil
}

// SendTemplate delivers one dynamic-template message.
func (c *Client) SendTemplate(ctx context.Context, msg TemplateMessage) error {
	if c == nil || c.api == nil {
		return errors.New("sendgrid client not initialized")
	}
	if strings.TrimSpace(msg.TemplateID) == "" {
		return errors.New("template id is required")
	}
	if len(msg.Recipients) == 0 {
		return errors.New("at least one recipient is required")
	}

	message := mail.NewV3Mail()
	message.SetFrom(c.from)
	message.SetTemplateID(msg.TemplateID)

	personalization := mail.NewPersonalization()
	for _, recipient := range msg.Recipients {
		personalization.AddTos(mail.NewEmail("", recipient))
	}
	for key, value := range msg.Data {
		personalization.SetDynamicTemplateData(key, value)
	}
	message.AddPersonalizations(personalization)

	resp, err := c.api.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
