package apperr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	err := WithPath(KindDirectoryNotFound, "discover", "/tmp/x/projects", os.ErrNotExist)
	wrapped := fmt.Errorf("run engine: %w", err)

	assert.True(t, errors.Is(wrapped, ErrDirectoryNotFound))
	assert.False(t, errors.Is(wrapped, ErrConfig))
	assert.True(t, errors.Is(wrapped, os.ErrNotExist))
	assert.Equal(t, KindDirectoryNotFound, KindOf(wrapped))
	assert.Equal(t, "discover: directory not found (/tmp/x/projects): file does not exist", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "configuration error", KindConfig.String())

	err := Newf(KindConfig, "filter", "since %s is after until %s", "20240102", "20240101")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "since 20240102 is after until 20240101")
}
