package interview

import (
	"slices"
	"sync"
)

// Transcripts holds the live capture buffers.
type Transcripts struct {
	// Final is the accumulated settled text of the current capture.
	Final string `json:"final"`

	// Interim is the unsettled text; display only, never part of an answer.
	Interim string `json:"interim"`
}

// Snapshot is the read-only projection of the session handed to the
// presentation layer. Snapshots never share mutable state with the
// orchestrator.
type Snapshot struct {
	SessionID         string      `json:"sessionId"`
	Phase             Phase       `json:"phase"`
	JobDescription    string      `json:"jobDescription"`
	Questions         []Question  `json:"questions"`
	CurrentIndex      int         `json:"currentIndex"`
	IsListening       bool        `json:"isListening"`
	IsSpeaking        bool        `json:"isSpeaking"`
	Transcripts       Transcripts `json:"transcripts"`
	Notice            string      `json:"notice,omitempty"`
	CaptureAvailable  bool        `json:"captureAvailable"`
	PlaybackAvailable bool        `json:"playbackAvailable"`
}

// CurrentQuestion returns the question being asked, if the interview is
// running.
func (s Snapshot) CurrentQuestion() (Question, bool) {
	if s.Phase != PhaseInterviewing || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// broadcaster fans snapshots out to subscribers. Each subscriber holds at most
// one pending snapshot; a newer one replaces an unread older one.
type broadcaster struct {
	mu     sync.RWMutex
	latest Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

func newBroadcaster(initial Snapshot) *broadcaster {
	return &broadcaster{latest: initial, subs: make(map[int]chan Snapshot)}
}

func (b *broadcaster) current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

func (b *broadcaster) publish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = s
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (b *broadcaster) subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Snapshot, 1)
	ch <- b.latest
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// closeAll closes every subscriber channel.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// cloneQuestions copies the question slice for a snapshot. Answer and
// Feedback pointees are never mutated once set, so sharing them is safe.
func cloneQuestions(qs []Question) []Question {
	if qs == nil {
		return []Question{}
	}
	return slices.Clone(qs)
}
