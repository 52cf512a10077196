package compositor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigurator struct {
	active     []string
	injectErr  error
	restoreErr error
	restored   int
}

func (f *fakeConfigurator) Inject(passes []string) (func() error, error) {
	if f.injectErr != nil {
		return nil, f.injectErr
	}
	prev := f.active
	f.active = passes
	return func() error {
		f.active = prev
		f.restored++
		return f.restoreErr
	}, nil
}

func TestWithRestoresAfterSuccess(t *testing.T) {
	c := &fakeConfigurator{active: []string{"lit"}}
	err := With(c, []string{"lit", "normal"}, func() error {
		assert.Equal(t, []string{"lit", "normal"}, c.active)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lit"}, c.active)
	assert.Equal(t, 1, c.restored)
}

func TestWithRestoresAfterError(t *testing.T) {
	c := &fakeConfigurator{active: []string{"lit"}}
	boom := errors.New("boom")
	err := With(c, []string{"depth"}, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"lit"}, c.active)
}

func TestWithRestoresAfterPanic(t *testing.T) {
	c := &fakeConfigurator{active: []string{"lit"}}
	assert.Panics(t, func() {
		_ = With(c, []string{"depth"}, func() error { panic("renderer crashed") })
	})
	assert.Equal(t, []string{"lit"}, c.active)
	assert.Equal(t, 1, c.restored)
}

func TestWithJoinsRestoreError(t *testing.T) {
	boom := errors.New("boom")
	stuck := errors.New("stuck")
	c := &fakeConfigurator{restoreErr: stuck}
	err := With(c, nil, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, stuck)
}

func TestWithInjectFailureSkipsFn(t *testing.T) {
	c := &fakeConfigurator{injectErr: errors.New("no insertion point")}
	called := false
	err := With(c, []string{"lit"}, func() error { called = true; return nil })
	assert.Error(t, err)
	assert.False(t, called)
	assert.Zero(t, c.restored)
}

func TestWithNilConfigurator(t *testing.T) {
	called := false
	require.NoError(t, With(nil, []string{"lit"}, func() error { called = true; return nil }))
	assert.True(t, called)
}
