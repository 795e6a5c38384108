// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/newsfactory/ssofact/sdk/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		opt        []Option
		wantPrefix string
	}{
		{name: "no-prefix"},
		{name: "with-prefix", opt: []Option{WithPrefix("alice")}, wantPrefix: "alice_"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewID(tt.opt...)
			require.NoError(err)
			require.True(strings.HasPrefix(got, tt.wantPrefix), got)
			random := strings.TrimPrefix(got, tt.wantPrefix)
			assert.Len(random, DefaultIDLength)
			b, err := base64.RawURLEncoding.DecodeString(random)
			require.NoError(err)
			assert.Len(b, id.RandomBytes)
		})
	}
}

func TestNewState_token(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	const n = 200
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		st, err := NewState("/", time.Minute)
		require.NoError(err)
		require.True(strings.HasPrefix(st.Token, "st_"), st.Token)
		b, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(st.Token, "st_"))
		require.NoError(err)
		// at least 128 bits of entropy
		assert.GreaterOrEqual(len(b)*8, 128)
		_, dup := seen[st.Token]
		require.False(dup, "duplicate state token %q", st.Token)
		seen[st.Token] = struct{}{}
	}
}

func Test_WithPrefix(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal(idOptions{withPrefix: "alice"}, getIDOpts(WithPrefix("alice")))
	assert.Equal(idDefaults(), getIDOpts())
}
