// Package util provides utility functions shared across Aura components.
package util

import (
	"math/rand/v2"
	"strings"
)

const (
	// BookingCodeLength is the length of the confirmation code handed to users on booking.
	BookingCodeLength = 6

	bookingCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
func GenerateRandomHex(length int) string {
	return randomString("0123456789abcdef", length)
}

// GenerateBookingCode returns an uppercase alphanumeric confirmation code.
// Users type it back during cancellation, so the alphabet has no lowercase letters.
func GenerateBookingCode() string {
	return randomString(bookingCodeChars, BookingCodeLength)
}

// GenerateOutboxID generates an outbox message ID with "ob_" prefix.
func GenerateOutboxID() string {
	return GenerateRandomID("ob_", 24)
}

func randomString(alphabet string, length int) string {
	if length <= 0 {
		return ""
	}

	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return builder.String()
}
