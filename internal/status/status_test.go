package status

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		code      int32
		wantState State
		wantKey   string
	}{
		{name: "success", code: 0, wantState: Success, wantKey: KeySuccess},
		{name: "not started", code: 0x00010002, wantState: NotStarted, wantKey: KeyNotStarted},
		{name: "init failed", code: 0x00010001, wantState: ErrorInitFailed, wantKey: KeyInitFailure},
		{name: "unknown positive", code: 42, wantState: Undefined},
		{name: "unknown negative", code: -1, wantState: Undefined},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Translate(tc.code)
			assert.Equal(t, tc.wantState, got.State)
			assert.Equal(t, tc.wantKey, got.MessageKey)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func TestStatus_Ready(t *testing.T) {
	t.Parallel()

	assert.True(t, Translate(CodeSuccess).Ready())
	assert.False(t, Translate(CodeNotStarted).Ready())
	assert.False(t, Translate(CodeInitFailed).Ready())
	assert.False(t, Translate(7).Ready())
}

func TestStatus_Undefined(t *testing.T) {
	t.Parallel()

	code, ok := Translate(1234).Undefined()
	assert.True(t, ok)
	assert.Equal(t, int32(1234), code)

	_, ok = Translate(CodeSuccess).Undefined()
	assert.False(t, ok)
}

func TestStatus_Text(t *testing.T) {
	t.Parallel()

	resolve := func(key string) string { return "resolved:" + key }

	t.Run("known state resolves", func(t *testing.T) {
		assert.Equal(t, "resolved:"+KeyInitFailure, Translate(CodeInitFailed).Text(resolve, true))
	})

	t.Run("unknown embeds raw code", func(t *testing.T) {
		text := Translate(99).Text(resolve, true)
		assert.True(t, strings.HasPrefix(text, "Undefined: 99\n"))
		assert.Contains(t, text, "E_UNDEFINED")
	})

	t.Run("not loaded falls back", func(t *testing.T) {
		text := Translate(CodeSuccess).Text(resolve, false)
		assert.Contains(t, text, "Undefined: "+strconv.Itoa(0))
	})
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "NotStarted", NotStarted.String())
	assert.Equal(t, "ErrorInitFailed", ErrorInitFailed.String())
	assert.Equal(t, "Undefined", State(17).String())
}
