package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// FailureDelayConfig holds the delay applied after a wrong PIN
type FailureDelayConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration // upper bound of the jitter added to BaseDelay
}

// FailureDelay pads failed PIN checks so wrong and locked answers take similar time
type FailureDelay struct {
	config FailureDelayConfig
	sleep  func(time.Duration)
}

// NewFailureDelay creates a new FailureDelay
func NewFailureDelay(config FailureDelayConfig) *FailureDelay {
	return &FailureDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// cryptoRandDuration returns a secure random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(randomBytes) % uint64(max))
}

// Target returns the total delay for one failure, jitter included
func (fd *FailureDelay) Target() time.Duration {
	return fd.config.BaseDelay + cryptoRandDuration(fd.config.RandomDelay)
}

// WaitFrom sleeps until at least Target() has passed since start
func (fd *FailureDelay) WaitFrom(start time.Time) {
	if fd == nil {
		return
	}
	target := fd.Target()
	if target <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed < target {
		fd.sleep(target - elapsed)
	}
}
