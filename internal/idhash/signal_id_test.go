package idhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignalID(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		wallet    string
		position  string
		eventTime int64
	}{
		{
			name:      "open",
			token:     "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
			wallet:    "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
			position:  "open",
			eventTime: 1722751980,
		},
		{
			name:      "increase",
			token:     "E8h41JVACEiePCdbccFb9mRUvcJc9aR2RCT6hnDCpump",
			wallet:    "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1",
			position:  "increase",
			eventTime: 1722752000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSignalID(tt.token, tt.wallet, tt.position, tt.eventTime)
			assert.Len(t, got, 64)
			assert.Equal(t, got, ComputeSignalID(tt.token, tt.wallet, tt.position, tt.eventTime))
		})
	}
}

func TestComputeSignalID_Uniqueness(t *testing.T) {
	base := ComputeSignalID("token", "wallet", "open", 1000)

	assert.NotEqual(t, base, ComputeSignalID("token2", "wallet", "open", 1000))
	assert.NotEqual(t, base, ComputeSignalID("token", "wallet2", "open", 1000))
	assert.NotEqual(t, base, ComputeSignalID("token", "wallet", "increase", 1000))
	assert.NotEqual(t, base, ComputeSignalID("token", "wallet", "open", 1001))
}

func TestComputeSignalID_SeparatorMatters(t *testing.T) {
	a := ComputeSignalID("ab", "c", "open", 1)
	b := ComputeSignalID("a", "bc", "open", 1)
	assert.NotEqual(t, a, b)
}
