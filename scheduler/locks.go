package scheduler

import (
	"sync"
)

// Orchestrator operations against the same campaign read the schedulable
// set and then mutate it, so they must not interleave. Locks are keyed by
// campaign ID; operations on different campaigns proceed in parallel.
var campaignLocks = struct {
	mu sync.Mutex
	m  map[uint]*sync.Mutex
}{m: make(map[uint]*sync.Mutex)}

// LockCampaign acquires the campaign's lock and returns the release func.
//
//	defer scheduler.LockCampaign(id)()
func LockCampaign(campaignID uint) func() {
	campaignLocks.mu.Lock()
	l, ok := campaignLocks.m[campaignID]
	if !ok {
		l = &sync.Mutex{}
		campaignLocks.m[campaignID] = l
	}
	campaignLocks.mu.Unlock()

	l.Lock()
	return l.Unlock
}
