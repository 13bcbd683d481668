package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	nf := fmt.Errorf("load: %w", NotFound(KindPreKey, 7))
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsCorrupt(nf))
	assert.EqualError(t, nf, "load: pre-key 7 not found")

	cause := errors.New("bad json")
	cr := Corrupt(KindSession, "aci.2", cause)
	assert.True(t, IsCorrupt(cr))
	assert.ErrorIs(t, cr, cause)

	inv := Invariant("aci overwrite", "id", "3", "aci", "x")
	assert.True(t, IsInvariant(inv))
	assert.EqualError(t, inv, "invariant violation: aci overwrite (aci=x, id=3)")
}

func TestStorage(t *testing.T) {
	assert.NoError(t, Storage("op", nil))

	raw := errors.New("disk I/O error")
	err := Storage("save pre-key", raw)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, raw)

	// Typed errors pass through untouched.
	nf := NotFound(KindRecipient, 1)
	assert.Same(t, nf, Storage("fetch", nf))
	lr := fmt.Errorf("remove kyber 4: %w", ErrLastResortKey)
	assert.Equal(t, lr, Storage("remove", lr))
	inv := Invariant("x")
	assert.Equal(t, inv, Storage("reconcile", inv))
}
