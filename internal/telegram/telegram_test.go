package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/aura-dev/aura/internal/models"
)

func TestParseUpdate(t *testing.T) {
	body := []byte(`{
		"update_id": 10,
		"message": {
			"message_id": 42,
			"date": 1736067600,
			"chat": {"id": 123456, "type": "private"},
			"from": {"id": 123456, "is_bot": false, "first_name": "Ana", "last_name": "Souza"},
			"text": "oi"
		}
	}`)
	in, err := ParseUpdate(body)
	if err != nil {
		t.Fatalf("ParseUpdate failed: %v", err)
	}
	if in.Channel != models.ChannelTelegram || in.From != "123456" || in.Text != "oi" {
		t.Errorf("message = %+v", in)
	}
	if in.UserID() != "telegram:123456" || in.MessageID != "tg-123456-42" || in.Name != "Ana Souza" {
		t.Errorf("derived fields = %q %q %q", in.UserID(), in.MessageID, in.Name)
	}
}

func TestParseUpdateIgnoresNonText(t *testing.T) {
	for _, body := range []string{
		`{"update_id": 1}`,
		`{"update_id": 1, "message": {"message_id": 1, "date": 0, "chat": {"id": 1, "type": "private"}}}`,
	} {
		if _, err := ParseUpdate([]byte(body)); !errors.Is(err, ErrNotTextMessage) {
			t.Errorf("ParseUpdate(%s) = %v, want ErrNotTextMessage", body, err)
		}
	}
	if _, err := ParseUpdate([]byte("{")); err == nil {
		t.Error("malformed body accepted")
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without token")
	}
}

func TestSendMessageRejectsBadChatID(t *testing.T) {
	c, err := NewClient(WithToken("123:abc"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := c.SendMessage(context.Background(), "not-a-number", "x"); err == nil {
		t.Error("expected chat id error")
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	m.SendMessage(context.Background(), "1", "olá")
	if sent := m.Sent(); len(sent) != 1 || sent[0].Text != "olá" {
		t.Errorf("sent = %+v", sent)
	}
	m.Err = errors.New("down")
	if err := m.SendMessage(context.Background(), "1", "x"); err == nil {
		t.Error("expected configured error")
	}
}
