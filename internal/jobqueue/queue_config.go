package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds the tunable parameters of the message queue.
type QueueConfig struct {
	// MaxWorkers is the number of messages handled concurrently.
	MaxWorkers int

	// MaxAttempts is 1: a handled message has already texted the user, so a retry
	// would text them twice.
	MaxAttempts int

	// JobTimeout bounds one message end to end, including its notification.
	JobTimeout time.Duration
}

// DefaultQueueConfig returns the default configuration.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers:  10,
		MaxAttempts: 1,
		JobTimeout:  2 * time.Minute,
	}
}

// RiverQueueConfig converts our config to River's queue configuration format.
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: c.MaxWorkers},
	}
}
