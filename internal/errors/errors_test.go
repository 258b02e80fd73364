package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("line 3 (x): %w", NewParseError("invalid formula"))
	assert.Equal(t, ErrCodeParse, CodeOf(err))
	assert.True(t, IsRecoverable(err))
	assert.Equal(t, ErrCode(""), CodeOf(stderrors.New("plain")))
	assert.False(t, IsRecoverable(stderrors.New("plain")))
}

func TestNetworkErrorKeepsCause(t *testing.T) {
	cause := stderrors.New("RequestError: throttled")
	err := NewNetworkError("GetHIT", cause)
	assert.True(t, IsNetwork(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "NETWORK_ERROR: GetHIT failed (RequestError: throttled)", err.Error())
}

func TestGuards(t *testing.T) {
	assert.True(t, IsAlreadyUploaded(NewAlreadyUploadedError("sandbox")))
	assert.Contains(t, NewAlreadyUploadedError("sandbox").Error(), "already uploaded this HIT to sandbox")
	assert.True(t, IsNotFound(NewNotFoundError("HITs for sandbox")))
	assert.False(t, IsRecoverable(NewNameResolutionError("x")))
}
