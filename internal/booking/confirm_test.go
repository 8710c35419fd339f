package booking

import (
	"errors"
	"testing"
	"time"
)

func validConfirmReq(date time.Time) ConfirmRequest {
	return ConfirmRequest{
		Date:          date,
		Slot:          "10:00-12:00",
		CustomerName:  "Anita Desai",
		CustomerPhone: "+91-9876543210",
		Address:       "14 MG Road, Pune",
		PaymentMethod: "upi",
	}
}

// Booking dates arrive as zone-local midnight. "Today" must mean today on
// the customer's calendar, whatever the zone's offset from UTC.
func TestConfirmDateComparedInBookingZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	pst := time.FixedZone("PST", -8*3600)
	lint := time.FixedZone("LINT", 14*3600)

	tests := []struct {
		name    string
		now     time.Time
		date    time.Time
		wantErr bool
	}{
		{
			name: "today at IST afternoon",
			now:  time.Date(2026, 8, 29, 15, 30, 0, 0, ist),
			date: time.Date(2026, 8, 29, 0, 0, 0, 0, ist),
		},
		{
			name: "today just after IST midnight",
			now:  time.Date(2026, 8, 29, 0, 5, 0, 0, ist),
			date: time.Date(2026, 8, 29, 0, 0, 0, 0, ist),
		},
		{
			name:    "yesterday in IST",
			now:     time.Date(2026, 8, 29, 15, 30, 0, 0, ist),
			date:    time.Date(2026, 8, 28, 0, 0, 0, 0, ist),
			wantErr: true,
		},
		{
			name: "tomorrow in IST",
			now:  time.Date(2026, 8, 29, 15, 30, 0, 0, ist),
			date: time.Date(2026, 8, 30, 0, 0, 0, 0, ist),
		},
		{
			name: "today at the far side of the date line",
			now:  time.Date(2026, 8, 29, 9, 0, 0, 0, lint),
			date: time.Date(2026, 8, 29, 0, 0, 0, 0, lint),
		},
		{
			name: "today in PST while UTC is already tomorrow",
			now:  time.Date(2026, 8, 29, 20, 0, 0, 0, pst),
			date: time.Date(2026, 8, 29, 0, 0, 0, 0, pst),
		},
		{
			name:    "yesterday in PST",
			now:     time.Date(2026, 8, 29, 20, 0, 0, 0, pst),
			date:    time.Date(2026, 8, 28, 0, 0, 0, 0, pst),
			wantErr: true,
		},
		{
			name: "today in UTC",
			now:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
			date: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validConfirmReq(tt.date)
			_, err := req.validateAt(tt.now)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("validateAt = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("validateAt rejected a same-or-later date: %v", err)
			}
		})
	}
}
