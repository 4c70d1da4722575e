package notify

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM pushes events to the per-user topic returned by UserTopic through
// Firebase Cloud Messaging. Client apps subscribe to their own topic.
type FCM struct {
	sender messageSender
}

func NewFCM(ctx context.Context, projectID, credentialsFile string) (*FCM, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Messaging: %w", err)
	}

	return &FCM{sender: client}, nil
}

// UserTopic names the topic of a user. Topic names only allow the characters
// [a-zA-Z0-9-_.~%], so any other byte of the id is percent-encoded, '%' too.
func UserTopic(userID string) string {
	var b strings.Builder

	b.WriteString("user-")

	for i := 0; i < len(userID); i++ {
		c := userID[i]
		if isTopicChar(c) {
			b.WriteByte(c)

			continue
		}

		fmt.Fprintf(&b, "%%%02X", c)
	}

	return b.String()
}

func isTopicChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}

	return false
}

func (f *FCM) Notify(ctx context.Context, evt Event) error {
	if evt.UserID == "" {
		return nil
	}

	data := make(map[string]string, len(evt.Data)+1)
	for k, v := range evt.Data {
		data[k] = v
	}

	data["kind"] = string(evt.Kind)

	_, err := f.sender.Send(ctx, &messaging.Message{
		Topic: UserTopic(evt.UserID),
		Notification: &messaging.Notification{
			Title: evt.Title,
			Body:  evt.Message,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("sender.Send: %w", err)
	}

	return nil
}
