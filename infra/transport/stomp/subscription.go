package stomp

import "sync"

// Subscription is the handle returned by Subscribe. Unsubscribe is idempotent and
// safe after the socket it was made on has been torn down.
type Subscription struct {
	id          string
	destination string
	callback    MessageFunc
	sess        *session

	once sync.Once
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Destination() string { return s.destination }

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.sess.forget(s.id) {
			s.sess.write(unsubscribeFrame(s.id))
		}
	})
}
