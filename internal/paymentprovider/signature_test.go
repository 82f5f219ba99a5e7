package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Now()

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{
			name:   "valid signature",
			header: signPayload(payload, secret, now),
		},
		{
			name:    "wrong secret",
			header:  signPayload(payload, "whsec_other", now),
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "tampered payload",
			header:  signPayload([]byte(`{"type":"other"}`), secret, now),
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "expired timestamp",
			header:  signPayload(payload, secret, now.Add(-time.Hour)),
			wantErr: ErrSignatureExpired,
		},
		{
			name:    "missing timestamp",
			header:  "v1=deadbeef",
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "garbage header",
			header:  "not-a-signature",
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(payload, tt.header, secret, DefaultSignatureTolerance, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifySignature_SecondValidSignatureAccepted(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	now := time.Now()

	valid := signPayload(payload, secret, now)
	// заголовок с посторонней v1 перед валидной, как при ротации секрета
	header := fmt.Sprintf("t=%d,v1=%s,%s", now.Unix(), hex.EncodeToString(make([]byte, 32)), valid[len(fmt.Sprintf("t=%d,", now.Unix())):])

	err := VerifySignature(payload, header, secret, DefaultSignatureTolerance, now)
	assert.NoError(t, err)
}
