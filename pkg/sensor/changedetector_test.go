package sensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jelmd/ipmimex/pkg/ipmi"
)

func repoInfoResponse(count uint16, lastAdd, lastDel uint32) *ipmi.Response {
	data := make([]byte, 13)
	data[0] = 0x51
	data[1], data[2] = byte(count), byte(count>>8)
	data[5] = byte(lastAdd)
	data[6] = byte(lastAdd >> 8)
	data[7] = byte(lastAdd >> 16)
	data[8] = byte(lastAdd >> 24)
	data[9] = byte(lastDel)
	data[10] = byte(lastDel >> 8)
	data[11] = byte(lastDel >> 16)
	data[12] = byte(lastDel >> 24)
	return &ipmi.Response{CCode: ipmi.Success, Data: data}
}

// TestChangeDetectorUnchangedTimestampsSkipVerification is spec.md §8 scenario S6: cached (7,3) matching
// fresh (7,3) reports false and issues no GetSDR calls.
func TestChangeDetectorUnchangedTimestampsSkipVerification(t *testing.T) {
	client := newTestClient(repoInfoResponse(1, 7, 3))
	d := &ChangeDetector{lastAdd: 7, lastDel: 3, primed: true}
	list := List{{RecordID: 1, OwnerID: 1, OwnerLUN: 0, SensorNum: 1}}

	changed, err := d.Changed(client, list)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestChangeDetectorEmptyListWithRecordsForcesRebuild(t *testing.T) {
	client := newTestClient(repoInfoResponse(3, 7, 3))
	d := &ChangeDetector{}

	changed, err := d.Changed(client, nil)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestChangeDetectorEmptyListEmptyRepoDoesNotRebuild(t *testing.T) {
	client := newTestClient(repoInfoResponse(0, 0, 0))
	d := &ChangeDetector{}

	changed, err := d.Changed(client, nil)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestChangeDetectorChangedTimestampVerifiesPerSensor(t *testing.T) {
	sdrHead := []byte{1, 0, 0x51, 0x01, 48, 0x20, 0x00, 0x01}
	client := newTestClient(
		repoInfoResponse(1, 8, 3), // last_add moved from 7 to 8
		reserveResponse(0x1111),
		sdrResponse(0xFFFF, sdrHead), // identity probe only needs the head
	)
	d := &ChangeDetector{lastAdd: 7, lastDel: 3, primed: true}
	list := List{{RecordID: 1, OwnerID: 0x20, OwnerLUN: 0, SensorNum: 1}}

	changed, err := d.Changed(client, list)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestChangeDetectorIdentityMismatchForcesRebuild(t *testing.T) {
	sdrHead := []byte{1, 0, 0x51, 0x01, 48, 0x99, 0x00, 0x01} // different owner id
	client := newTestClient(
		repoInfoResponse(1, 8, 3),
		reserveResponse(0x1111),
		sdrResponse(0xFFFF, sdrHead),
	)
	d := &ChangeDetector{lastAdd: 7, lastDel: 3, primed: true}
	list := List{{RecordID: 1, OwnerID: 0x20, OwnerLUN: 0, SensorNum: 1}}

	changed, err := d.Changed(client, list)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestChangeDetectorRepoInfoFailureIsConservative(t *testing.T) {
	client := newTestClient(&ipmi.Response{CCode: ipmi.NodeBusy})
	d := &ChangeDetector{lastAdd: 7, lastDel: 3, primed: true}
	list := List{{RecordID: 1, OwnerID: 1, OwnerLUN: 0, SensorNum: 1}}

	changed, err := d.Changed(client, list)
	require.NoError(t, err)
	require.False(t, changed)
}
