package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CreateWindow{URL: "https://x", Title: "T"}, "window:https://x,T"},
		{Fullscreen{}, "fullscreen"},
		{Minimize{}, "minimize"},
		{Maximize{}, "maximize"},
		{Close{}, "close"},
		{DragWindow{}, "drag_window"},
		{ScriptMessage{Payload: "ping"}, "deno:ping"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Kind().String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.cmd))

			decoded, err := Decode(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, decoded)
		})
	}
}

func TestDecodeWindowArguments(t *testing.T) {
	tests := []struct {
		in   string
		want CreateWindow
	}{
		{"window:", CreateWindow{}},
		{"window:https://a", CreateWindow{URL: "https://a"}},
		{"window:https://a,Title", CreateWindow{URL: "https://a", Title: "Title"}},
		{"window:https://a,Hello, world", CreateWindow{URL: "https://a", Title: "Hello"}},
		{"window:,Only title", CreateWindow{Title: "Only title"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeScriptMessageKeepsPayloadVerbatim(t *testing.T) {
	got, err := Decode("deno:window:close,fullscreen")
	require.NoError(t, err)
	assert.Equal(t, ScriptMessage{Payload: "window:close,fullscreen"}, got)

	got, err = Decode("deno:")
	require.NoError(t, err)
	assert.Equal(t, ScriptMessage{}, got)
}

func TestDecodeUnknown(t *testing.T) {
	for _, in := range []string{"", "FULLSCREEN", "fullscreen ", "resize:10,10", "windows"} {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrUnknownCommand, "input %q", in)
	}
}
