package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendNotifier struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendNotifier {
	m := &MailerSendNotifier{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendNotifier) SendBookingConfirmed(toEmail, toName, sessionID string, totalAmount int64, scheduledAt time.Time) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your Kaamwale booking is placed"
	html := fmt.Sprintf(`
		<h2>Booking placed!</h2>
		<p>Hi %s,</p>
		<p>We are finding a worker for your booking <strong>%s</strong>.</p>
		<p>Total payable: <strong>₹%d</strong></p>
		<p>Scheduled for: %s</p>
		<p>You will be notified the moment a worker accepts.</p>
	`, toName, sessionID, totalAmount, scheduledAt.Format("Mon, 2 Jan 2006 15:04"))

	text := fmt.Sprintf("Your booking %s is placed. Total payable: ₹%d. Scheduled for %s.",
		sessionID, totalAmount, scheduledAt.Format("Mon, 2 Jan 2006 15:04"))

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendNotifier) SendArrivalOTP(toEmail, toName, code string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your worker has arrived"
	html := fmt.Sprintf(`
		<h2>Your worker has arrived</h2>
		<p>Hi %s,</p>
		<p>Share this code with the worker to start the service:</p>
		<p><strong style="font-size: 24px; color: #4CAF50;">%s</strong></p>
		<p>Do not share the code before the worker is at your door.</p>
	`, toName, code)

	text := fmt.Sprintf("Your worker has arrived. Share this code to start the service: %s", code)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendNotifier) sendEmail(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
