package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockCampaignSerializesSameCampaign(t *testing.T) {
	const workers = 20

	var inCritical, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := LockCampaign(1)
			defer unlock()

			mu.Lock()
			inCritical++
			if inCritical > max {
				max = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "lock admitted concurrent holders")
}

func TestLockCampaignIndependentCampaigns(t *testing.T) {
	unlockA := LockCampaign(10)
	defer unlockA()

	// A different campaign's lock must not block
	done := make(chan struct{})
	go func() {
		unlockB := LockCampaign(11)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on campaign 11 blocked behind campaign 10")
	}
}
