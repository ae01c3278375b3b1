package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTransition(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		incoming string
		want     string
	}{
		{"pending to paid", OrderStatusPending, OrderStatusPaid, OrderStatusPaid},
		{"pending to failed", OrderStatusPending, OrderStatusFailed, OrderStatusFailed},
		{"paid is terminal against failed", OrderStatusPaid, OrderStatusFailed, OrderStatusPaid},
		{"paid is terminal against pending", OrderStatusPaid, OrderStatusPending, OrderStatusPaid},
		{"failed not resurrected by pending", OrderStatusFailed, OrderStatusPending, OrderStatusFailed},
		{"failed to paid allowed", OrderStatusFailed, OrderStatusPaid, OrderStatusPaid},
		{"duplicate paid stays paid", OrderStatusPaid, OrderStatusPaid, OrderStatusPaid},
		{"unknown incoming keeps current", OrderStatusPending, "", OrderStatusPending},
		{"empty current takes incoming", "", OrderStatusPaid, OrderStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTransition(tt.current, tt.incoming))
		})
	}
}
