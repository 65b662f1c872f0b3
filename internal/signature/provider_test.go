package signature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/expensabot/expensa/internal/signature"
)

func TestVerifyProvider(t *testing.T) {
	secret := "test-app-secret"
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)

	tests := []struct {
		name      string
		body      []byte
		header    string
		secret    string
		wantValid bool
	}{
		{
			name:      "valid signature over exact bytes",
			body:      body,
			header:    signature.SignProvider(body, secret),
			secret:    secret,
			wantValid: true,
		},
		{
			name:      "signature over different body",
			body:      []byte(`{"object":"whatsapp_business_account","entry":[{}]}`),
			header:    signature.SignProvider(body, secret),
			secret:    secret,
			wantValid: false,
		},
		{
			name:      "wrong secret",
			body:      body,
			header:    signature.SignProvider(body, "other-secret"),
			secret:    secret,
			wantValid: false,
		},
		{
			name:      "missing header",
			body:      body,
			header:    "",
			secret:    secret,
			wantValid: false,
		},
		{
			name:      "missing algorithm prefix",
			body:      body,
			header:    signature.SignProvider(body, secret)[len("sha256="):],
			secret:    secret,
			wantValid: false,
		},
		{
			name:      "non-hex digest",
			body:      body,
			header:    "sha256=not-hex-at-all",
			secret:    secret,
			wantValid: false,
		},
		{
			name:      "empty secret",
			body:      body,
			header:    signature.SignProvider(body, secret),
			secret:    "",
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, signature.VerifyProvider(tt.body, tt.header, tt.secret))
		})
	}
}

func TestVerifyProvider_TamperedBody(t *testing.T) {
	secret := "secret"
	original := []byte(`{"amount":5000}`)
	header := signature.SignProvider(original, secret)

	tampered := []byte(`{"amount":9000}`)
	assert.False(t, signature.VerifyProvider(tampered, header, secret))
	assert.True(t, signature.VerifyProvider(original, header, secret))
}
