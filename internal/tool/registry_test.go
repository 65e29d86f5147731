package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTool struct {
	name string
	se   SideEffect
	out  string
	err  error
}

func (s *staticTool) Name() string           { return s.name }
func (s *staticTool) Description() string    { return "static " + s.name }
func (s *staticTool) InputSchema() string    { return "{}" }
func (s *staticTool) SideEffect() SideEffect { return s.se }
func (s *staticTool) Invoke(ctx context.Context, input string) (string, error) {
	return s.out, s.err
}

func TestRegistryInvoke(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&staticTool{name: "a", se: SideEffectReadOnly, out: "result-a"})

	out, err := reg.Invoke(context.Background(), "a", "{}")
	require.NoError(t, err)
	assert.Equal(t, "result-a", out)
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Invoke(context.Background(), "missing", "{}")

	var ierr *InvocationError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "missing", ierr.Tool)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryInvokeWrapsToolErrors(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("kaput")
	reg.Register(&staticTool{name: "b", err: boom})

	_, err := reg.Invoke(context.Background(), "b", "{}")
	var ierr *InvocationError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryInvokeRefusesIrreversible(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&staticTool{name: "send", se: SideEffectIrreversible, out: "sent"})

	_, err := reg.Invoke(context.Background(), "send", "{}")
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	out, err := reg.InvokeConfirmed(context.Background(), "send", "{}")
	require.NoError(t, err)
	assert.Equal(t, "sent", out)
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&staticTool{name: "zeta", se: SideEffectMutating})
	reg.Register(&staticTool{name: "alpha", se: SideEffectIrreversible})

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, SideEffectIrreversible, defs[0].SideEffect)
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
}

func TestRegistryReRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&staticTool{name: "a", out: "old"})
	reg.Register(&staticTool{name: "a", out: "new"})

	out, err := reg.Invoke(context.Background(), "a", "{}")
	require.NoError(t, err)
	assert.Equal(t, "new", out)
}
