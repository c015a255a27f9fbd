package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const (
	// CardNumberLength is the digit count of every generated card number
	CardNumberLength = 16
	// CVVLength is the digit count of every generated security code
	CVVLength = 3
	// CardValidityYears is how long a card stays valid after creation
	CardValidityYears = 5
)

// GenerateCardNumber generates a card number with the specified prefix and length.
// The last digit is a Luhn check digit.
func GenerateCardNumber(prefix string, length int) (string, error) {
	if length <= len(prefix) || length > 19 {
		return "", fmt.Errorf("invalid card number length: %d", length)
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("card number prefix must be numeric: %q", prefix)
		}
	}

	body, err := randomDigits(length - len(prefix) - 1)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(prefix)
	builder.WriteString(body)
	builder.WriteByte(luhnCheckDigit(builder.String()))

	cardNumber := builder.String()
	if len(cardNumber) != length {
		return "", fmt.Errorf("generated card number has incorrect length: got %d, want %d", len(cardNumber), length)
	}

	return cardNumber, nil
}

// GenerateCVV generates a 3-digit CVV code
func GenerateCVV() (string, error) {
	return randomDigits(CVVLength)
}

// GenerateExpirationDate returns the expiration of a card created at now
func GenerateExpirationDate(now time.Time) time.Time {
	return now.AddDate(CardValidityYears, 0, 0)
}

// IsValidCardNumber validates a card number using the Luhn algorithm
func IsValidCardNumber(cardNumber string) bool {
	if cardNumber == "" {
		return false
	}
	var sum int
	shouldDouble := false

	for i := len(cardNumber) - 1; i >= 0; i-- {
		if cardNumber[i] < '0' || cardNumber[i] > '9' {
			return false
		}
		digit := int(cardNumber[i] - '0')

		if shouldDouble {
			digit = digit * 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		shouldDouble = !shouldDouble
	}

	return sum%10 == 0
}

// luhnCheckDigit computes the digit that makes partial+digit pass the Luhn check
func luhnCheckDigit(partial string) byte {
	var sum int
	shouldDouble := true
	for i := len(partial) - 1; i >= 0; i-- {
		digit := int(partial[i] - '0')
		if shouldDouble {
			digit = digit * 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		shouldDouble = !shouldDouble
	}
	return byte((10-sum%10)%10) + '0'
}

func randomDigits(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}
	for i := range b {
		b[i] = b[i]%10 + '0' // Convert to ASCII digit
	}
	return string(b), nil
}
