package store

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeduel/live-delivery/internal/domain/event"
)

// Fingerprint identifies one logical server event for duplicate suppression.
type Fingerprint string

// FingerprintOf derives the key from the discriminant, the correlation fields and
// the time bucket the event arrived in. Two genuinely distinct events with the same
// key fields inside one bucket collapse into one; the bucket width is the tuning knob.
func FingerprintOf(ev event.Eventer, at time.Time, bucket time.Duration) Fingerprint {
	if bucket <= 0 {
		bucket = time.Second
	}

	var (
		kind   event.Kind
		match  string
		status string
	)
	if ev != nil {
		kind = ev.GetKind()
		if id := event.MatchIDOf(ev); id != 0 {
			match = fmt.Sprint(id)
		}
		if r, ok := ev.(*event.SubmissionResultEvent); ok {
			status = r.SubmissionStatus
		}
	}

	return Fingerprint(fmt.Sprintf("%s-%s-%s-%s-%d",
		kind, match, event.SenderOf(ev), status, at.UnixNano()/int64(bucket)))
}

// window is the bounded set of recently seen fingerprints. Membership checks do not
// refresh recency, so once full the oldest insertion is evicted first.
type window struct {
	cache *lru.Cache[Fingerprint, struct{}]
}

func newWindow(size int) *window {
	if size <= 0 {
		size = DefaultDedupWindowSize
	}
	cache, _ := lru.New[Fingerprint, struct{}](size)
	return &window{cache: cache}
}

// observe records fp and reports whether it had been seen already.
func (w *window) observe(fp Fingerprint) bool {
	if w.cache.Contains(fp) {
		return true
	}
	w.cache.Add(fp, struct{}{})
	return false
}

func (w *window) len() int { return w.cache.Len() }

func (w *window) purge() { w.cache.Purge() }
