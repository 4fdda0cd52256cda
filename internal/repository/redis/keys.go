package redis

import "fmt"

const ns = "seatbook:v1"

func KeyEvent(eventID int64) string {
	return fmt.Sprintf("%s:event:%d", ns, eventID)
}

func KeyEventAvailability(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:availability", ns, eventID)
}

func KeyOpenEvents() string {
	return ns + ":events:open"
}

func KeyIdemBooking(eventID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%d:%s", ns, eventID, idemKey)
}

func ChannelAvailabilityChanged() string {
	return ns + ":availability:changed"
}
