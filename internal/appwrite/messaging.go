package appwrite

import (
	"context"
	"net/http"

	"github.com/hitoshi/invoiceapi/internal/notify"
)

type emailBody struct {
	MessageID string   `json:"messageId"`
	Subject   string   `json:"subject"`
	Content   string   `json:"content"`
	Users     []string `json:"users"`
	HTML      bool     `json:"html"`
	Draft     bool     `json:"draft"`
}

// Mailer はAppwrite Messaging APIでメールを送信するnotify.Mailer実装。
type Mailer struct {
	client *Client
}

// NewMailer はMailerを生成する。
func NewMailer(client *Client) *Mailer {
	return &Mailer{client: client}
}

// SendEmail は宛先ユーザーIDへHTMLメールを即時送信する。
func (m *Mailer) SendEmail(ctx context.Context, msg notify.Message) error {
	body := emailBody{
		MessageID: uniqueID,
		Subject:   msg.Subject,
		Content:   msg.HTML,
		Users:     msg.UserIDs,
		HTML:      true,
	}
	return m.client.do(ctx, http.MethodPost, "/messaging/messages/email", nil, body, nil)
}
