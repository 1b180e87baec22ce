package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEditor(t *testing.T) {
	res, err := Launch(context.Background(), nil, Config{
		Text:          "Hello world!\n\nBonjour le monde!\n; This is a comment\n",
		CommentPrefix: ";",
		Command:       "true",
	})
	require.NoError(t, err, "failed to launch editor")
	require.Equal(t, "Hello world!\n\nBonjour le monde!\n", res)
}
