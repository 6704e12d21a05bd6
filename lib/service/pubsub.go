package service

import (
	"sync"

	"github.com/labstack/gommon/random"
)

// Pubsub fans booking events out to in-process subscribers. Topics are event
// types; a subscription to DefaultTopic receives every event.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan Event
}

const DefaultTopic = "*"

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan Event)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan Event) (subId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan Event)
	}
	subId = random.String(16)
	ps.subs[topic][subId] = ch
	return subId
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][id] == nil {
		return
	}
	close(ps.subs[topic][id])
	delete(ps.subs[topic], id)
}

func (ps *Pubsub) Publish(topic string, event Event) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, ch := range ps.subs[topic] {
		ch <- event
	}
	if topic != DefaultTopic {
		for _, ch := range ps.subs[DefaultTopic] {
			ch <- event
		}
	}
}
