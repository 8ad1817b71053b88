package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	var u User
	require.NoError(t, u.SetPassword("Secret@123"))

	assert.NotEqual(t, "Secret@123", u.PasswordHash)
	assert.True(t, u.IsPasswordCorrect("Secret@123"))
	assert.False(t, u.IsPasswordCorrect("secret@123"))
}

func TestVerificationOTPChecks(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var u User

	assert.ErrorIs(t, u.CheckVerificationOTP("123456", now), ErrNoOTP)

	u.SetVerificationOTP("123456", now.Add(10*time.Minute))
	assert.ErrorIs(t, u.CheckVerificationOTP("654321", now), ErrOTPMismatch)
	assert.NoError(t, u.CheckVerificationOTP("123456", now))

	// Expiry is checked before the value
	assert.ErrorIs(t, u.CheckVerificationOTP("654321", now.Add(11*time.Minute)), ErrOTPExpired)

	u.MarkEmailVerified()
	assert.True(t, u.IsEmailVerified)
	assert.Empty(t, u.EmailVerificationOTP)
	assert.Nil(t, u.OTPExpiry)
}

func TestPasswordResetOTP(t *testing.T) {
	now := time.Now()
	var u User

	u.SetPasswordResetOTP("000123", now.Add(time.Minute))
	assert.NoError(t, u.CheckPasswordResetOTP("000123", now))

	u.ClearPasswordResetOTP()
	assert.ErrorIs(t, u.CheckPasswordResetOTP("000123", now), ErrNoOTP)
}

func TestUserJSONHidesSecrets(t *testing.T) {
	u := User{Email: "a@b.edu", PasswordHash: "hash", RefreshToken: "tok", EmailVerificationOTP: "123456"}
	raw, err := json.Marshal(u)
	require.NoError(t, err)

	s := string(raw)
	assert.NotContains(t, s, "hash")
	assert.NotContains(t, s, "tok")
	assert.NotContains(t, s, "123456")
	assert.Contains(t, s, `"email":"a@b.edu"`)
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "student@uni.edu", NormalizeEmail("  Student@Uni.EDU "))
	assert.Equal(t, "1AB21CS001", NormalizeUSN(" 1ab21cs001"))
}

func TestTeamEventSet(t *testing.T) {
	tm := &Team{TeamLeaderID: 4}
	tm.AddEvent(1)
	tm.AddEvent(1)
	tm.AddEvent(2)
	assert.Equal(t, []uint{1, 2}, []uint(tm.RegisteredEvents))

	tm.RemoveEvent(1)
	assert.False(t, tm.HasEvent(1))
	assert.True(t, tm.HasEvent(2))
	assert.True(t, tm.IsLedBy(4))

	raw, err := json.Marshal(tm)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"teamSize":0`)
}
