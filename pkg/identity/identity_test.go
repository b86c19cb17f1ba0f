package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	want := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "dashed", input: "069a79f4-44e9-4726-a5be-fca90e38aaf5"},
		{name: "undashed", input: "069a79f444e94726a5befca90e38aaf5"},
		{name: "upper case", input: "069A79F444E94726A5BEFCA90E38AAF5"},
		{name: "surrounding space", input: "  069a79f4-44e9-4726-a5be-fca90e38aaf5 "},
		{name: "empty", input: "", wantErr: true},
		{name: "name", input: "Notch", wantErr: true},
		{name: "urn form", input: "urn:uuid:069a79f4-44e9-4726-a5be-fca90e38aaf5", wantErr: true},
		{name: "bad hex", input: "zz9a79f444e94726a5befca90e38aaf5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidID)
				assert.False(t, IsID(tt.input))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.True(t, IsID(tt.input))
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	id := uuid.New()
	got, err := FromKey(Key(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestString(t *testing.T) {
	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	assert.Equal(t, "jeb_", New(id, "jeb_").String())
	assert.Equal(t, id.String(), New(id, "").String())
}
