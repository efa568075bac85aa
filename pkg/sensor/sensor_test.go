package sensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jelmd/ipmimex/pkg/ipmi"
)

func TestFormatThresholdsOnlyIncludesReadable(t *testing.T) {
	th := &ipmi.Thresholds{ReadableMask: 0x05, LowerNC: 10, LowerNR: 30}
	require.Equal(t, "lnc=10,lnr=30", FormatThresholds(th))
}

func TestFormatThresholdsNilIsEmpty(t *testing.T) {
	require.Empty(t, FormatThresholds(nil))
}

func TestListFindKey(t *testing.T) {
	l := List{
		{OwnerID: 0x20, OwnerLUN: 0, SensorNum: 1, Name: "a"},
		{OwnerID: 0x20, OwnerLUN: 1, SensorNum: 1, Name: "b"},
	}
	require.Equal(t, "b", l.FindKey(0x20, 1, 1).Name)
	require.Nil(t, l.FindKey(0x20, 2, 1))
}
