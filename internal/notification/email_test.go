package notification

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rosevil15/TPMSS-sub001/internal/protocol"
	"github.com/Rosevil15/TPMSS-sub001/pkg/config"
)

type sentMail struct {
	addr string
	to   []string
	msg  string
}

func newTestNotifier(configured bool) (*EmailNotifier, *[]sentMail) {
	cfg := &config.SMTPConfig{Host: "smtp.test", Port: 2525, From: "tpmss@test", To: "cw@test"}
	if configured {
		cfg.Username = "user"
		cfg.Password = "pass"
	}
	n := NewEmailNotifier(cfg, nil)
	n.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }

	var sent []sentMail
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, to: to, msg: string(msg)})
		return nil
	}
	return n, &sent
}

func raised(id, name string) *protocol.WarningNotification {
	n := protocol.NewWarningNotification(protocol.WarningTypeRaised, id, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	n.Name = name
	n.Location = "Poblacion, Argao, Cebu, Region VII"
	n.RiskLevel = "high"
	n.PreviousLevel = "none"
	n.PregnancyCount = 2
	n.RepeatedPregnancy = true
	n.SchoolDropout = true
	return n
}

func cleared(id, name string) *protocol.WarningNotification {
	n := protocol.NewWarningNotification(protocol.WarningTypeCleared, id, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	n.Name = name
	n.Location = "N/A"
	n.RiskLevel = "none"
	n.PreviousLevel = "medium"
	return n
}

func TestSendWarning_Raised(t *testing.T) {
	n, sent := newTestNotifier(true)

	require.NoError(t, n.SendWarning(raised("p1", "Ana Cruz")))
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.test:2525", mail.addr)
	assert.Equal(t, []string{"cw@test"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Early warning RAISED - Ana Cruz, Poblacion, Argao, Cebu, Region VII\r\n")
	assert.Contains(t, mail.msg, "Risk Level: HIGH (was NONE)")
	assert.Contains(t, mail.msg, "Repeated Pregnancy: Yes")
	assert.Contains(t, mail.msg, "Detected: Jun 1, 2025 08:00")
}

func TestSendWarning_UnknownType(t *testing.T) {
	n, sent := newTestNotifier(true)

	err := n.SendWarning(&protocol.WarningNotification{Type: "OTHER", ProfileID: "p1"})
	assert.Error(t, err)
	assert.Empty(t, *sent)
}

func TestSendDigest(t *testing.T) {
	n, sent := newTestNotifier(true)

	err := n.SendDigest([]*protocol.WarningNotification{
		cleared("p2", "Bea Reyes"),
		raised("p1", "Ana Cruz"),
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	msg := (*sent)[0].msg
	assert.Contains(t, msg, "Subject: Early warning digest - 2 updates")
	assert.Contains(t, msg, "1 raised, 1 cleared.")
	assert.Contains(t, msg, "- Ana Cruz (Poblacion, Argao, Cebu, Region VII): HIGH, 2 pregnancies, dropout Yes")
	assert.Contains(t, msg, "- Bea Reyes (N/A), was MEDIUM")
	assert.Less(t, strings.Index(msg, "Raised\n"), strings.Index(msg, "Cleared\n"))
}

func TestSendDigest_SingleUsesWarningTemplate(t *testing.T) {
	n, sent := newTestNotifier(true)

	require.NoError(t, n.SendDigest([]*protocol.WarningNotification{cleared("p2", "Bea Reyes")}))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Early Warning Cleared")
}

func TestSendDigest_Empty(t *testing.T) {
	n, sent := newTestNotifier(true)

	require.NoError(t, n.SendDigest(nil))
	assert.Empty(t, *sent)
}

func TestSendEmail_Unconfigured(t *testing.T) {
	n, sent := newTestNotifier(false)

	require.NoError(t, n.SendWarning(raised("p1", "Ana Cruz")))
	assert.Empty(t, *sent)
	assert.False(t, n.Configured())
}

func TestSendEmail_Failure(t *testing.T) {
	n, _ := newTestNotifier(true)
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := n.SendWarning(raised("p1", "Ana Cruz"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}
