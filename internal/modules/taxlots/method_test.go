package taxlots

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	testCases := []struct {
		input    string
		expected Method
	}{
		{"fifo", FIFO},
		{"LIFO", LIFO},
		{" Hifo ", HIFO},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			m, err := ParseMethod(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, m)
			assert.True(t, m.Valid())
		})
	}
}

func TestParseMethod_Unknown(t *testing.T) {
	for _, input := range []string{"", "average", "fifo2"} {
		m, err := ParseMethod(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Empty(t, m)
	}

	assert.False(t, Method("acb").Valid())
}

func TestMethods(t *testing.T) {
	assert.Equal(t, []Method{FIFO, LIFO, HIFO}, Methods())
	for _, m := range Methods() {
		assert.True(t, m.Valid(), m.String())
	}
}

func TestInvalidInputError_Message(t *testing.T) {
	err := invalid("quantity", "0xabc", "must be nonzero")
	assert.Equal(t, "invalid quantity in event 0xabc: must be nonzero", err.Error())

	err = invalid("method", "", "unsupported accounting method x")
	assert.Equal(t, "invalid method: unsupported accounting method x", err.Error())
}
