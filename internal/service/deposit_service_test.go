package service

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

func TestClientReferencePerAttempt(t *testing.T) {
	now := time.Now()

	a := clientReference("buyer-1", now, 1)
	b := clientReference("buyer-1", now, 2)
	c := clientReference("buyer-2", now, 1)

	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	// Same inputs stay traceable to the same reference.
	assert.Equal(t, a, clientReference("buyer-1", now, 1))
}

func TestEncodeQr(t *testing.T) {
	out := encodeQr("00020126580014br.gov.bcb.pix520400005303986", zap.NewNop())
	require.NotEmpty(t, out)

	png, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestAbsInt64(t *testing.T) {
	assert.Equal(t, int64(3), absInt64(3))
	assert.Equal(t, int64(3), absInt64(-3))
	assert.Equal(t, int64(0), absInt64(0))
}
