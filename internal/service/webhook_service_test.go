package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenValid(t *testing.T) {
	s := &WebhookService{webhookToken: "secret-token"}

	assert.True(t, s.TokenValid("secret-token"))
	assert.False(t, s.TokenValid("wrong"))
	assert.False(t, s.TokenValid(""))
}

func TestTokenValidUnconfiguredRejectsAll(t *testing.T) {
	s := &WebhookService{}

	assert.False(t, s.TokenValid(""))
	assert.False(t, s.TokenValid("anything"))
}

func TestIsInfraction(t *testing.T) {
	assert.True(t, isInfraction(map[string]interface{}{}, "infraction_open"))
	assert.True(t, isInfraction(map[string]interface{}{"infraction": map[string]interface{}{}}, "paid"))
	assert.True(t, isInfraction(map[string]interface{}{"infraction_id": "inf-1"}, ""))
	assert.False(t, isInfraction(map[string]interface{}{"status": "paid"}, "paid"))
}

func TestWebhookReplaySideEffects(t *testing.T) {
	// End-to-end replay behavior rides on the database transaction.
	t.Skip("Integration test - requires database")
}
