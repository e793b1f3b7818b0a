package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreLocation(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		scheme  string
		host    string
		path    string
		wantErr bool
	}{
		{name: "file", uri: "file:///var/lib/signin", scheme: "file", path: "/var/lib/signin"},
		{name: "s3", uri: "s3://bucket/prefix?region=eu-west-1", scheme: "s3", host: "bucket", path: "/prefix"},
		{name: "vault", uri: "vault://vault.local:8200/secret/signin", scheme: "vault", host: "vault.local:8200", path: "/secret/signin"},
		{name: "uppercase scheme", uri: "FILE:///tmp", scheme: "file", path: "/tmp"},
		{name: "unsupported", uri: "ipfs://node:5001/", wantErr: true},
		{name: "malformed", uri: "://nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewStoreLocation(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidLocationURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, loc.Scheme)
			assert.Equal(t, tt.host, loc.Host)
			assert.Equal(t, tt.path, loc.Path)
			assert.Equal(t, tt.uri, loc.String())
		})
	}
}

func TestStoreLocation_Params(t *testing.T) {
	loc, err := NewStoreLocation("s3://AK:SK@bucket/p?region=us-west-2&path_style=true")
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", loc.GetParam("region"))
	assert.True(t, loc.GetParamBool("path_style"))
	assert.False(t, loc.GetParamBool("missing"))
	assert.Equal(t, "AK:SK", loc.Auth)
}

func TestSignInForm_Field(t *testing.T) {
	form := SignInForm{Secret: "s", Major: "CS", Name: "Dave", Email: "dave@mst.edu"}
	for _, field := range RequiredFields {
		assert.NotEmpty(t, form.Field(field), field)
	}
	assert.Empty(t, form.Field(FieldAddToCCDC))
}
