/*
Copyright © 2026 the gwfdata authors.
This file is part of gwfdata.

gwfdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gwfdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gwfdata.  If not, see <http://www.gnu.org/licenses/>.
*/

package gwfdata

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProgressState is a snapshot of the progress of a subset.
type ProgressState struct {
	// Current and Total are numbers of chunks, where a chunk is one time
	// step of one variable.
	Current, Total int

	Elapsed time.Duration

	// Rate is in chunks per second.
	Rate float64

	// Remaining is the estimated time left, or zero if unknown.
	Remaining time.Duration

	Done bool
}

// Progress tracks the number of chunks of a subset that have been read
// and reports it to observers. Observers cannot affect the subset.
// All methods may be called on a nil *Progress, in which case they do
// nothing.
type Progress struct {
	mu        sync.Mutex
	observers []func(ProgressState)
	start     time.Time
	current   int
	total     int

	now func() time.Time
}

// NewProgress returns a progress tracker that reports to the given
// observers.
func NewProgress(observers ...func(ProgressState)) *Progress {
	return &Progress{observers: observers, now: time.Now}
}

// Start resets p to expect total chunks.
func (p *Progress) Start(total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.start = p.now()
	p.current = 0
	p.total = total
	s := p.state(false)
	p.mu.Unlock()
	p.notify(s)
}

// Add records n more completed chunks.
func (p *Progress) Add(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.current += n
	s := p.state(false)
	p.mu.Unlock()
	p.notify(s)
}

// Done records that the subset has finished, successfully or not.
func (p *Progress) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	s := p.state(true)
	p.mu.Unlock()
	p.notify(s)
}

// State returns the current state of p.
func (p *Progress) State() ProgressState {
	if p == nil {
		return ProgressState{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state(false)
}

// state must be called with p.mu held.
func (p *Progress) state(done bool) ProgressState {
	s := ProgressState{Current: p.current, Total: p.total, Done: done}
	if p.start.IsZero() {
		return s
	}
	s.Elapsed = p.now().Sub(p.start)
	if s.Elapsed > 0 {
		s.Rate = float64(p.current) / s.Elapsed.Seconds()
	}
	if s.Rate > 0 && p.total > p.current {
		s.Remaining = time.Duration(float64(p.total-p.current) / s.Rate * float64(time.Second))
	}
	return s
}

// notify calls the observers outside of the lock. A panicking observer
// does not interrupt the subset.
func (p *Progress) notify(s ProgressState) {
	for _, o := range p.observers {
		func() {
			defer func() { recover() }()
			o(s)
		}()
	}
}

// LogProgress returns an observer that logs every `every` chunks and
// when a subset finishes.
func LogProgress(log logrus.FieldLogger, every int) func(ProgressState) {
	if every < 1 {
		every = 1
	}
	return func(s ProgressState) {
		if !s.Done && (s.Current == 0 || s.Current%every != 0) {
			return
		}
		entry := log.WithFields(logrus.Fields{
			"chunk":    s.Current,
			"total":    s.Total,
			"walltime": s.Elapsed.Round(time.Millisecond).String(),
		})
		if s.Done {
			entry.Info("subset finished")
			return
		}
		entry.WithField("remaining", s.Remaining.Round(time.Second).String()).Info("subset progress")
	}
}
