package build

import (
	"sync"
	"time"
)

// BuildStats is a point-in-time copy of BuildMetrics.
type BuildStats struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	DroppedTriggers  int64
	FollowUpBuilds   int64
	LastDuration     time.Duration
	AverageDuration  time.Duration
	TotalDuration    time.Duration
}

// BuildMetrics tracks build performance and trigger handling
type BuildMetrics struct {
	mutex sync.RWMutex
	stats BuildStats
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a build result in the metrics
func (bm *BuildMetrics) RecordBuild(result BuildResult) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	s := &bm.stats
	s.TotalBuilds++
	s.TotalDuration += result.Duration
	s.LastDuration = result.Duration

	if result.FollowUp {
		s.FollowUpBuilds++
	}

	if result.Error != nil {
		s.FailedBuilds++
	} else {
		s.SuccessfulBuilds++
	}

	s.AverageDuration = s.TotalDuration / time.Duration(s.TotalBuilds)
}

// RecordDropped counts a trigger that arrived while a build was running.
func (bm *BuildMetrics) RecordDropped() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.stats.DroppedTriggers++
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildStats {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	return bm.stats
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.stats.TotalBuilds == 0 {
		return 0.0
	}

	return float64(bm.stats.SuccessfulBuilds) / float64(bm.stats.TotalBuilds) * 100.0
}
