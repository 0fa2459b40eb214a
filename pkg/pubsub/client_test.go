package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/orderdesk/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{project: "proj", name: "order-notifications", want: "projects/proj/topics/order-notifications"},
		{project: "proj", name: " projects/other/topics/t ", want: "projects/other/topics/t"},
		{project: "", name: "t", want: ""},
		{project: "proj", name: "  ", want: ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected errProjectIDRequired, got %v", err)
	}
}

func TestNilClientIsInert(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil || c.NotificationPublisher() != nil {
		t.Fatalf("nil client should not hand out publishers")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close should be a no-op, got %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("nil ping should error")
	}
}
