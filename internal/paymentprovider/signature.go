package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance максимально допустимый возраст подписи.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	// ErrInvalidSignature подпись не совпала или заголовок повреждён.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrSignatureExpired метка времени подписи вне допуска.
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")
)

// VerifySignature проверяет заголовок Stripe-Signature вида
// "t=<unix>,v1=<hex hmac-sha256>". Подписываемая строка — "<t>.<payload>".
// Сравнение выполняется за постоянное время.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	const op = "paymentprovider.VerifySignature"

	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%s: %w", op, ErrSignatureExpired)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
}
