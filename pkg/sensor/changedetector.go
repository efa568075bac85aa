package sensor

import "github.com/jelmd/ipmimex/pkg/ipmi"

// ChangeDetector caches the SDR repository's last-add/last-del
// timestamps between calls (spec §4.6), so repeated polling cycles skip
// the per-sensor identity walk unless the repository actually changed.
type ChangeDetector struct {
	lastAdd uint32
	lastDel uint32
	primed  bool
}

// Changed reports whether list must be rebuilt from a fresh scan. It is
// conservative on transport failure (returns false, keep the current
// list) and only pays for a per-sensor identity walk when the cached
// timestamps disagree with what GetSDRRepoInfo reports now.
func (d *ChangeDetector) Changed(client *ipmi.Client, list List) (bool, error) {
	info, err := client.GetSDRRepoInfo()
	if err != nil {
		return false, nil
	}

	if len(list) == 0 {
		rebuild := info.RecordCount > 0
		d.lastAdd, d.lastDel, d.primed = info.LastAdd, info.LastDel, true
		return rebuild, nil
	}

	if d.primed && info.LastAdd == d.lastAdd && info.LastDel == d.lastDel {
		return false, nil
	}

	for _, s := range list {
		_, head, err := client.GetSDR(s.RecordID, 8)
		if err != nil {
			return true, nil
		}
		ownerID, ownerLUN, sensorNum, err := ipmi.DecodeSDRIdentity(head)
		if err != nil || ownerID != s.OwnerID || ownerLUN != s.OwnerLUN || sensorNum != s.SensorNum {
			return true, nil
		}
	}

	d.lastAdd, d.lastDel, d.primed = info.LastAdd, info.LastDel, true
	return false, nil
}
