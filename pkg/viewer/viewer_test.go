package viewer

import (
	"context"
	"testing"

	"github.com/entrhq/kidguard/pkg/config"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func family() Roster {
	adult := false
	return NewRoster([]config.FamilyMember{
		{Name: "Mia", Age: 7},
		{Name: "Leo", Age: 13},
		{Name: "Dad", Age: 40, IsChild: &adult},
	}, 12)
}

func TestRosterResolve(t *testing.T) {
	tests := []struct {
		name string
		age  int
		want types.Viewer
	}{
		{"Mia", 0, types.Viewer{Name: "Mia", Age: 7, IsChild: true, Confidence: KnownConfidence}},
		{"mia", 0, types.Viewer{Name: "Mia", Age: 7, IsChild: true, Confidence: KnownConfidence}},
		{"Leo", 0, types.Viewer{Name: "Leo", Age: 13, IsChild: false, Confidence: KnownConfidence}},
		{"Dad", 0, types.Viewer{Name: "Dad", Age: 40, IsChild: false, Confidence: KnownConfidence}},
		{"stranger", 6, types.Viewer{Name: UnknownName, Age: 6, IsChild: true, Confidence: UnknownConfidence}},
		{"", 35, types.Viewer{Name: UnknownName, Age: 35, IsChild: false, Confidence: UnknownConfidence}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, family().Resolve(tt.name, tt.age), tt.name)
	}
}

func TestParseIdentification(t *testing.T) {
	v, err := parseIdentification([]byte(`{"name": "Mia"}`), family())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.IsChild)

	v, err = parseIdentification([]byte("  \n"), family())
	require.NoError(t, err)
	assert.Nil(t, v, "empty output means nobody was seen")

	v, err = parseIdentification([]byte("null"), family())
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = parseIdentification([]byte("face detected"), family())
	assert.Error(t, err)
}

func TestCommand(t *testing.T) {
	c, err := NewCommand([]string{"sh", "-c", `echo '{"name":"unknown-kid","age":5}'`}, family())
	require.NoError(t, err)

	v, err := c.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UnknownName, v.Name)
	assert.True(t, v.IsChild)
}

func TestStatic(t *testing.T) {
	v, err := NewStatic(family(), "Leo").Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Leo", v.Name)
	assert.False(t, v.IsChild)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Identify(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewCommand([]string{"no-such-face-tool"}, family())
	assert.ErrorIs(t, err, ErrUnavailable)
}
