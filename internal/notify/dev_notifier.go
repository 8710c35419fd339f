package notify

import (
	"fmt"
	"time"

	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
)

type DevNotifier struct{}

func NewDevNotifier() *DevNotifier {
	return &DevNotifier{}
}

func (d *DevNotifier) SendBookingConfirmed(toEmail, toName, sessionID string, totalAmount int64, scheduledAt time.Time) error {
	logger.Info("📧 [DEV MAIL] Booking Confirmation",
		"to", toEmail,
		"name", toName,
		"session_id", sessionID,
		"total_amount", totalAmount,
		"scheduled_at", scheduledAt,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 BOOKING CONFIRMATION (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: Your Kaamwale booking is placed\n"+
		"\n"+
		"Booking: %s\n"+
		"Total: ₹%d\n"+
		"Scheduled: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, toName, sessionID, totalAmount, scheduledAt.Format(time.RFC1123))

	return nil
}

func (d *DevNotifier) SendArrivalOTP(toEmail, toName, code string) error {
	logger.Info("📧 [DEV MAIL] Arrival OTP",
		"to", toEmail,
		"code", code,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 ARRIVAL OTP (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: Your worker has arrived\n"+
		"\n"+
		"Share this code with your worker to start the service: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, toName, code)

	return nil
}
