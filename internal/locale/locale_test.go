package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		token string
		want  domain.LocaleValue
	}{
		{"US", domain.LocaleValue{Country: "US"}},
		{"USA", domain.LocaleValue{Country: "US"}},
		{"US:NY", domain.LocaleValue{Country: "US", Subdivision: "NY"}},
		{"USA:NY", domain.LocaleValue{Country: "US", Subdivision: "NY"}},
		{"MEX", domain.LocaleValue{Country: "MX"}},
		{"CAN", domain.LocaleValue{Country: "CA"}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := Resolve(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		token   string
		message string
	}{
		{"ZZ", "unknown country ZZ"},
		{"us", "unknown country us"},
		{"United States", "unknown country United States"},
		{"", "unknown country "},
		{"US:ZZ", "unknown subdivision ZZ for country US"},
		{"USA:", "unknown subdivision  for country USA"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := Resolve(tt.token)
			require.Error(t, err)
			assert.True(t, errors.IsRecoverable(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
