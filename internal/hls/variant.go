package hls

import "fmt"

// ErrNoVariants is returned when a master playlist carries no usable
// #EXT-X-STREAM-INF entries.
var ErrNoVariants = fmt.Errorf("hls: master playlist has no variants")

// SelectVariant picks the highest-bandwidth variant at or under ceiling; with
// no ceiling configured (zero) it takes the first variant listed, and if
// every variant exceeds the ceiling it falls back to the first as well.
func SelectVariant(mp *MasterPlaylist, ceiling int) (MasterVariant, error) {
	if len(mp.Variants) == 0 {
		return MasterVariant{}, ErrNoVariants
	}
	if ceiling <= 0 {
		return mp.Variants[0], nil
	}
	best, found := MasterVariant{}, false
	for _, v := range mp.Variants {
		if v.Bandwidth <= ceiling && (!found || v.Bandwidth > best.Bandwidth) {
			best, found = v, true
		}
	}
	if !found {
		return mp.Variants[0], nil
	}
	return best, nil
}
