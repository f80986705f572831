package accumulator

import (
	"context"
	"sync"
	"time"
)

// Accumulator counts events and stores the count as a sample on an interval.
type Accumulator struct {
	sync.RWMutex

	Label   string // used to identify the owner of an accumulator
	samples []Sample
	acc     int64

	// Samples to store before being discarded
	storedSamples int

	// Time between sampling from the accumulator.
	// 60 samples with an interval of 1 minute will provide a 1 hour history.
	interval time.Duration
}

// Sample contains the time the sample was made and its value
type Sample struct {
	StoredAt time.Time `json:"stored_at"`
	Value    int64     `json:"value"`
}

// SampleGroup holds a group of samples
type SampleGroup struct {
	Label   string   `json:"label"`
	Samples []Sample `json:"samples"`
}

// NewAccumulator creates an accumulator. This does not automatically call Run
func NewAccumulator(label string, storedSamples int, interval time.Duration) *Accumulator {
	if storedSamples < 1 {
		storedSamples = 1
	}

	return &Accumulator{
		Label:         label,
		samples:       make([]Sample, 0, storedSamples),
		storedSamples: storedSamples,
		interval:      interval,
	}
}

// Increment increments the accumulator by 1
func (ac *Accumulator) Increment() {
	ac.IncrementBy(1)
}

// IncrementBy increments the accumulator by a specified number
func (ac *Accumulator) IncrementBy(acc int64) {
	ac.Lock()
	ac.acc += acc
	ac.Unlock()
}

// Pending returns the count not yet stored as a sample.
func (ac *Accumulator) Pending() int64 {
	ac.RLock()
	defer ac.RUnlock()

	return ac.acc
}

// GetLastSamples returns a copy of the last N samples from the accumulator
func (ac *Accumulator) GetLastSamples(n int) SampleGroup {
	ac.RLock()
	defer ac.RUnlock()

	index := len(ac.samples) - n
	if index < 0 {
		index = 0
	}

	samples := make([]Sample, len(ac.samples)-index)
	copy(samples, ac.samples[index:])

	return SampleGroup{Label: ac.Label, Samples: samples}
}

// Sum returns the sum of all samples in a samplegroup object
func (sg SampleGroup) Sum() int64 {
	acc := int64(0)
	for _, sample := range sg.Samples {
		acc += sample.Value
	}

	return acc
}

// RunOnce stores the current count as a sample and resets it.
func (ac *Accumulator) RunOnce(t time.Time) {
	ac.Lock()
	defer ac.Unlock()

	ac.samples = append(ac.samples, Sample{StoredAt: t, Value: ac.acc})
	ac.acc = 0

	// If we surpass the stored samples number, remove old samples
	if len(ac.samples) > ac.storedSamples {
		ac.samples = ac.samples[len(ac.samples)-ac.storedSamples:]
	}
}

// Run samples the accumulator every interval until ctx is done.
func (ac *Accumulator) Run(ctx context.Context) {
	t := time.NewTicker(ac.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			ac.RunOnce(now.UTC())
		}
	}
}
