package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Message — уведомление для лога и, опционально, внешнего вебхука.
// Mention помечает событие, требующее внимания оператора.
type Message struct {
	Text    string `json:"text"`
	Type    string `json:"type"` // info, error, cron
	Mention bool   `json:"mention,omitempty"`
}

// Notifier пишет уведомления в лог и шлет их на вебхук в режиме
// fire-and-forget: ошибки доставки игнорируются и на вызывающего не
// влияют.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send отправляет уведомление
func (n *Notifier) Send(msg Message) {
	if msg.Mention {
		log.Printf("[%s][ALERT] %s", msg.Type, msg.Text)
	} else {
		log.Printf("[%s] %s", msg.Type, msg.Text)
	}

	if n == nil || n.webhookURL == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		body, err := json.Marshal(msg)
		if err != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			log.Printf("warning: failed to deliver notification: %v", err)
			return
		}
		resp.Body.Close()
	}()
}
