package tokens

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// verificationClaims ties a 3-D Secure return trip to the preauthorization
// attempt it belongs to.
type verificationClaims struct {
	UserID    int64  `json:"user_id"`
	BookingID int64  `json:"booking_id"`
	Operation string `json:"operation"`

	jwt.StandardClaims
}

// GenerateVerificationToken creates the short-lived token handed to the
// payer before a 3-D Secure redirect. The orchestrator refuses a second
// preauthorization of the same type, which makes replayed tokens harmless.
func GenerateVerificationToken(secret []byte, expiry int, userID, bookingID int64, operation string) (string, error) {
	claims := &verificationClaims{
		UserID:    userID,
		BookingID: bookingID,
		Operation: operation,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Duration(expiry) * time.Second).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseVerificationToken validates the token and returns the attempt it
// belongs to.
func ParseVerificationToken(secret []byte, tokenString string) (userID, bookingID int64, operation string, err error) {
	claims := &verificationClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return 0, 0, "", err
	}
	return claims.UserID, claims.BookingID, claims.Operation, nil
}
