package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/points-rewards-api/pkg/config"
)

func TestSendRequiresRecipients(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Enabled: true}, nil)
	require.Error(t, m.Send(context.Background(), Message{To: []string{"", ""}, Subject: "x"}))
}

func TestSendDisabledIsNoop(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Enabled: false}, nil)
	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Points approved"}))
}

func TestCompactDedupes(t *testing.T) {
	require.Equal(t, []string{"a@x", "b@x"}, compact([]string{"a@x", "", "b@x", "a@x"}))
}
