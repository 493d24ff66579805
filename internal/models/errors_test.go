package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := NewError(ErrorKindUserRejected, "You rejected the request in your wallet", errors.New("code 4001"))
	wrapped := fmt.Errorf("failed to transfer: %w", err)

	require.Equal(t, ErrorKindUserRejected, KindOf(wrapped))
	require.Equal(t, "You rejected the request in your wallet", UserMessage(wrapped))
	require.Equal(t, ErrorKindUnknown, KindOf(errors.New("boom")))
	require.Equal(t, UnknownErrorMessage, UserMessage(errors.New("boom")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewError(ErrorKindProvider, "RPC failure", cause)
	require.ErrorIs(t, err, cause)
}
