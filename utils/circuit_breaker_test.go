package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	for i := 0; i < 10; i++ {
		err := cb.Execute(func() error { return nil })
		assert.NoError(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensOnFailureRatio(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("publish failed")

	for i := 0; i < 5; i++ {
		err := cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Open circuit rejects without invoking the request.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.timeout = 0 // transition to half-open immediately

	for i := 0; i < 5; i++ {
		cb.Execute(func() error { return errors.New("fail") })
	}
	assert.Equal(t, StateOpen, cb.state)

	// Timeout elapsed: the next call probes and a success closes the circuit.
	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.timeout = 0

	for i := 0; i < 5; i++ {
		cb.Execute(func() error { return errors.New("fail") })
	}

	err := cb.Execute(func() error { return errors.New("still failing") })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.state)
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	assert.NoError(t, err)
	assert.Len(t, code, 16) // hex doubles the byte count

	other, err := GenerateCode(8)
	assert.NoError(t, err)
	assert.NotEqual(t, code, other)
}
