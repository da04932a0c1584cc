package growthbook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError_IsNetworkRequest(t *testing.T) {
	err := &TransportError{Endpoint: "https://x", Err: errors.New("boom")}
	assert.True(t, errors.Is(err, ErrNetworkRequest))
	assert.Contains(t, err.Error(), "https://x")
}

func TestPersistError_IsPersistFailure(t *testing.T) {
	err := &PersistError{Op: "set", Key: "gbFeaturesCache", Err: errors.New("disk full")}
	assert.True(t, errors.Is(err, ErrPersistFailure))
}

func TestStreamError_IsStreamClosed(t *testing.T) {
	err := &StreamError{Key: "k", Errors: 4, Err: errors.New("closed")}
	assert.True(t, errors.Is(err, ErrStreamClosed))
}
