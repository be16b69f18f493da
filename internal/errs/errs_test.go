package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	assert.Equal(t, 400, KindParse.Status())
	assert.Equal(t, 404, KindNotFound.Status())
	assert.Equal(t, 500, KindInternal.Status())
	assert.Equal(t, 0, KindBind.Status())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindIO, cause, "writing upload")

	assert.Equal(t, KindIO, err.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestAsAndKindOf(t *testing.T) {
	err := New(KindForbidden, "no access")

	got, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, KindForbidden, got.Kind)

	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("unclassified")))
}
