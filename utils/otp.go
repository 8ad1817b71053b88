package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	OTPLength = 6
	OTPExpiry = 10 * time.Minute
)

// GenerateOTP returns a random numeric code of OTPLength digits. The first
// digit is never zero.
func GenerateOTP() (string, error) {
	const digits = "0123456789"
	otp := make([]byte, OTPLength)

	for i := range otp {
		n := int64(len(digits))
		offset := int64(0)
		if i == 0 {
			n, offset = 9, 1
		}
		num, err := rand.Int(rand.Reader, big.NewInt(n))
		if err != nil {
			return "", err
		}
		otp[i] = digits[num.Int64()+offset]
	}

	return string(otp), nil
}

// OTPExpiresAt returns the expiry for a code issued at now.
func OTPExpiresAt(now time.Time) time.Time {
	return now.Add(OTPExpiry)
}
