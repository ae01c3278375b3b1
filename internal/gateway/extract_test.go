package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emvSample = "00020126580014br.gov.bcb.pix0136a1b2c3d4-e5f6-0000-0000-0000000000005204000053039865802BR"

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestExtractExternalIDTopLevel(t *testing.T) {
	m := decode(t, `{"external_id": 12345, "status": "pending"}`)
	assert.Equal(t, "12345", ExtractExternalID(m))
}

func TestExtractExternalIDNested(t *testing.T) {
	m := decode(t, `{"data": {"transaction_id": "tx-9"}}`)
	assert.Equal(t, "tx-9", ExtractExternalID(m))
}

func TestExtractExternalIDArrayWrapped(t *testing.T) {
	m := decode(t, `{"data": [{"id": "tx-7"}]}`)
	assert.Equal(t, "tx-7", ExtractExternalID(m))
}

func TestExtractExternalIDPriority(t *testing.T) {
	// Top-level external_id beats nested ids.
	m := decode(t, `{"external_id": "top", "data": {"id": "nested"}}`)
	assert.Equal(t, "top", ExtractExternalID(m))
}

func TestExtractExternalIDMissing(t *testing.T) {
	m := decode(t, `{"status": "paid"}`)
	assert.Equal(t, "", ExtractExternalID(m))
}

func TestExtractPixPayload(t *testing.T) {
	m := map[string]interface{}{"copy_past": emvSample}
	assert.Equal(t, emvSample, ExtractPixPayload(m))
}

func TestExtractPixPayloadRejectsBareID(t *testing.T) {
	// Short non-EMV values under pix-ish keys are ids, not payloads.
	m := map[string]interface{}{"qr_code": "tx-12345"}
	assert.Equal(t, "", ExtractPixPayload(m))
}

func TestExtractPixPayloadNested(t *testing.T) {
	m := map[string]interface{}{
		"data": map[string]interface{}{"pix_copia_e_cola": emvSample},
	}
	assert.Equal(t, emvSample, ExtractPixPayload(m))
}

func TestExtractStatus(t *testing.T) {
	assert.Equal(t, "paid", ExtractStatus(decode(t, `{"status": "PAID"}`)))
	assert.Equal(t, "pending", ExtractStatus(decode(t, `{"transaction": {"status": " pending "}}`)))
	assert.Equal(t, "", ExtractStatus(decode(t, `{"other": true}`)))
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"paid", "paid"},
		{"APPROVED", "paid"},
		{"confirmed", "paid"},
		{"failed", "failed"},
		{"refunded", "failed"},
		{"chargeback", "failed"},
		{"pending", "pending"},
		{"waiting_payment", "pending"},
		{"something_new", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapProviderStatus(tt.in), "status %q", tt.in)
	}
}
