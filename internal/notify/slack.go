package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const slackTimeout = 10 * time.Second

// SlackNotifier posts execution outcomes to a Slack incoming webhook.
// An empty webhook URL disables it.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// SlackMessage is the webhook payload
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment colors the message by outcome
type SlackAttachment struct {
	Color  string `json:"color"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
}

// NewSlackNotifier creates a notifier posting to webhookURL
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: slackTimeout},
	}
}

// ToJSON renders the payload for the webhook POST
func (m *SlackMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SlackColor maps a notification type onto Slack's attachment palette
func SlackColor(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "good"
	case NotifyWarning:
		return "warning"
	case NotifyError:
		return "danger"
	default:
		return "#439FE0"
	}
}

// Send posts the notification. A nil error with an empty URL means the
// notifier is disabled, not that anything was delivered.
func (s *SlackNotifier) Send(n Notification) error {
	if s.webhookURL == "" {
		return nil
	}

	msg := SlackMessage{
		Text:        n.Title,
		Attachments: []SlackAttachment{attachmentFor(n)},
	}

	payload, err := msg.ToJSON()
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

func attachmentFor(n Notification) SlackAttachment {
	text := n.Message
	if n.Branch != "" {
		text = fmt.Sprintf("%s\nBranch: `%s`", text, n.Branch)
	}
	return SlackAttachment{
		Color:  SlackColor(n.Type),
		Title:  n.TraceID,
		Text:   text,
		Footer: "Exo Orchestrator",
	}
}
