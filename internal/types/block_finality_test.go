package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBlockFinality(t *testing.T) {
	tests := []struct {
		input   string
		want    BlockFinality
		wantErr bool
	}{
		{input: "finalized", want: FinalityFinalized},
		{input: "safe", want: FinalitySafe},
		{input: "latest", want: FinalityLatest},
		{input: "pending", wantErr: true},
		{input: "", wantErr: true},
		{input: "Latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBlockFinality(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.input, got.String())
		})
	}
}

func TestBlockFinality_Ceiling(t *testing.T) {
	tests := []struct {
		name          string
		finality      BlockFinality
		head, confirm uint64
		want          uint64
		ok            bool
	}{
		{name: "latest withholds confirmations", finality: FinalityLatest, head: 100, confirm: 12, want: 88, ok: true},
		{name: "latest exact window", finality: FinalityLatest, head: 12, confirm: 12, want: 0, ok: true},
		{name: "latest short chain", finality: FinalityLatest, head: 5, confirm: 12, ok: false},
		{name: "finalized ignores confirmations", finality: FinalityFinalized, head: 100, confirm: 12, want: 100, ok: true},
		{name: "safe ignores confirmations", finality: FinalitySafe, head: 7, confirm: 12, want: 7, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.finality.Ceiling(tt.head, tt.confirm)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
