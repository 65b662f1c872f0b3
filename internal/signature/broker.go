package signature

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Broker signature verification errors.
var (
	ErrMissingSignature = errors.New("missing broker signature")
	ErrInvalidSignature = errors.New("invalid broker signature")
	ErrBodyMismatch     = errors.New("broker signature body hash mismatch")
)

// BrokerVerifier validates the signed token attached to each broker
// delivery. Two signing keys are accepted simultaneously so a key
// rotation on the broker side does not reject in-flight messages.
type BrokerVerifier struct {
	currentKey []byte
	nextKey    []byte
}

func NewBrokerVerifier(currentKey, nextKey string) *BrokerVerifier {
	return &BrokerVerifier{
		currentKey: []byte(currentKey),
		nextKey:    []byte(nextKey),
	}
}

// Verify checks the delivery token against the current key, then the next
// key, and binds the token to the exact raw delivery body through its
// body-hash claim. Failure of both keys rejects the delivery.
func (v *BrokerVerifier) Verify(rawBody []byte, tokenString string) error {
	if tokenString == "" {
		return ErrMissingSignature
	}

	claims, err := v.parseWithKey(tokenString, v.currentKey)
	if err != nil {
		claims, err = v.parseWithKey(tokenString, v.nextKey)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	bodyClaim, _ := claims["body"].(string)
	if bodyClaim == "" {
		return ErrBodyMismatch
	}

	sum := sha256.Sum256(rawBody)
	if bodyClaim != base64.URLEncoding.EncodeToString(sum[:]) {
		return ErrBodyMismatch
	}

	return nil
}

func (v *BrokerVerifier) parseWithKey(tokenString string, key []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// SignBroker builds a delivery token for the given body, signed with the
// given key. Used by tests and by brokers that loop back locally.
func SignBroker(rawBody []byte, key string) (string, error) {
	sum := sha256.Sum256(rawBody)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"body": base64.URLEncoding.EncodeToString(sum[:]),
	})
	return token.SignedString([]byte(key))
}
