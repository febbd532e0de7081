// Package broadcast implements the cross-replica coordination channel: a
// pub/sub registry carrying repo-update notifications so that a replica
// which just committed, pulled, or merged can nudge every other replica
// sharing the same project to pull for itself. Messages are never treated
// as authoritative — a recipient always re-fetches from its own adapter.
package broadcast

import (
	"sync"

	"github.com/foliavcs/folia/vcs"
)

// Update is the payload of a repo-update notification: the commit graph
// state (flattened, since vcs.Graph has no exported fields) and the
// commits newly added by whatever operation triggered the broadcast.
type Update struct {
	Branches   []vcs.Branch `json:"branches"`
	NewCommits []vcs.Commit `json:"newCommits"`
}

// Message is what travels over a Channel.
type Message struct {
	ProjectID       string `json:"projectId"`
	OriginReplicaID string `json:"originReplicaId"`
	Update          Update `json:"update"`
}

// Handler receives messages a subscriber is interested in.
type Handler func(Message)

// Channel is the collaborator surface the core consumes: push a message,
// subscribe a handler (optionally scoped to one project id), and close.
type Channel interface {
	Push(msg Message)
	Subscribe(handler Handler, projectID string) (unsubscribe func())
	Close()
}

type subscriber struct {
	handler   Handler
	projectID string // empty subscribes to every project
}

// Local is the default in-process mailbox: a single goroutine fans out
// each pushed message to every matching subscriber, so a slow handler
// never blocks the pusher. Handlers run one after another on that
// goroutine, so a slow handler does delay delivery to the others.
type Local struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	msgs        chan Message
	done        chan struct{}
}

// NewLocal starts a Local channel with the given mailbox depth.
func NewLocal(buffer int) *Local {
	l := &Local{
		subscribers: make(map[int]*subscriber),
		msgs:        make(chan Message, buffer),
		done:        make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Local) run() {
	for {
		select {
		case msg := <-l.msgs:
			l.mu.Lock()
			handlers := make([]*subscriber, 0, len(l.subscribers))
			for _, s := range l.subscribers {
				if s.projectID == "" || s.projectID == msg.ProjectID {
					handlers = append(handlers, s)
				}
			}
			l.mu.Unlock()
			for _, s := range handlers {
				s.handler(msg)
			}
		case <-l.done:
			return
		}
	}
}

// Push enqueues msg for delivery. Non-blocking: a full mailbox drops the
// oldest pending message rather than stalling the caller's commit/pull.
func (l *Local) Push(msg Message) {
	select {
	case l.msgs <- msg:
	default:
		select {
		case <-l.msgs:
		default:
		}
		select {
		case l.msgs <- msg:
		default:
		}
	}
}

// Subscribe registers handler, optionally scoped to projectID (empty
// means every project), and returns a function that removes it.
func (l *Local) Subscribe(handler Handler, projectID string) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subscribers[id] = &subscriber{handler: handler, projectID: projectID}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subscribers, id)
		l.mu.Unlock()
	}
}

// Close stops the dispatch goroutine. Subsequent Push calls are no-ops.
func (l *Local) Close() {
	close(l.done)
}
