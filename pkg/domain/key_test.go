package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestContinuationKey_Format(t *testing.T) {
	key := domain.ContinuationKey{ConversationID: "abc", ContinuationID: "def"}
	assert.Equal(t, "_sabc_cdef", key.String())
}

func TestParseContinuationKey(t *testing.T) {
	key, err := domain.ParseContinuationKey("_sabc_cdef")
	require.NoError(t, err)
	assert.Equal(t, domain.ContinuationKey{ConversationID: "abc", ContinuationID: "def"}, key)
}

func TestParseContinuationKey_Invalid(t *testing.T) {
	cases := map[string]string{
		"no conversation prefix":  "abc_cdef",
		"wrong prefix":            "_xabc_cdef",
		"no continuation prefix":  "_sabcdef",
		"empty conversation id":   "_s_cdef",
		"empty continuation id":   "_sabc_c",
		"empty":                   "",
		"continuation part first": "_cdef_sabc",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := domain.ParseContinuationKey(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidKeyFormat))
			assert.True(t, domain.IsRepositoryError(err))
		})
	}
}

func TestContinuationKey_RoundTrip(t *testing.T) {
	id := rapid.StringMatching(`[A-Za-z0-9-]{1,40}`)
	rapid.Check(t, func(t *rapid.T) {
		key := domain.ContinuationKey{
			ConversationID: id.Draw(t, "conversation"),
			ContinuationID: id.Draw(t, "continuation"),
		}
		parsed, err := domain.ParseContinuationKey(key.String())
		if err != nil {
			t.Fatalf("parse %q: %v", key.String(), err)
		}
		if parsed != key {
			t.Fatalf("round trip mismatch: %+v != %+v", parsed, key)
		}
	})
}

func TestContinuationKey_Validate(t *testing.T) {
	tests := []struct {
		name  string
		key   domain.ContinuationKey
		valid bool
	}{
		{"plain", domain.ContinuationKey{ConversationID: "abc", ContinuationID: "def"}, true},
		{"prefix in continuation id", domain.ContinuationKey{ConversationID: "abc", ContinuationID: "d_cef"}, true},
		{"prefix in conversation id", domain.ContinuationKey{ConversationID: "a_cbc", ContinuationID: "def"}, false},
		{"empty conversation id", domain.ContinuationKey{ContinuationID: "def"}, false},
		{"empty continuation id", domain.ContinuationKey{ConversationID: "abc"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if !tt.valid {
				assert.ErrorIs(t, err, domain.ErrInvalidKeyFormat)
				return
			}
			require.NoError(t, err)
			parsed, err := domain.ParseContinuationKey(tt.key.String())
			require.NoError(t, err)
			assert.Equal(t, tt.key, parsed)
		})
	}
}
