package controller

import "sort"

// nextSlot computes the slot index for a newly connected device.
//
// The currently assigned slots are sorted ascending with unassigned devices
// participating as -1. Walking the sorted sequence, tracking the highest
// adjacent-claimed index, stops at the first gap wider than adjacency; the
// new slot is the index just past the last adjacent claim. Gaps left by
// disconnects are therefore filled before the range is extended, and the
// result is deterministic for any ordering of the connected list.
//
// Examples (assigned slots → new slot): [] → 0, [0] → 1, [0 1 2] → 3,
// [0 2] → 1, [1 2] → 0.
func nextSlot(devices []Device) int {
	slots := make([]int, len(devices))
	for i, d := range devices {
		slots[i] = d.Slot
	}
	sort.Ints(slots)

	expected := SlotUnassigned
	for _, s := range slots {
		if s-expected > 1 {
			break
		}
		expected = s
	}
	return expected + 1
}
