// Package appstate holds the operator's application state: authentication and
// association selection. Changes go through Update and are published to
// subscribers.
package appstate

import (
	"slices"
	"sync"

	"github.com/maraudr/console/internal/model"
)

// State is an immutable snapshot. Update replaces it as a whole.
type State struct {
	Email         string
	Authenticated bool
	Associations  []model.Association
	SelectedID    string
}

// Selected returns the selected association, if the operator still belongs
// to it.
func (s State) Selected() (model.Association, bool) {
	if s.SelectedID == "" {
		return model.Association{}, false
	}
	for _, a := range s.Associations {
		if a.ID == s.SelectedID {
			return a, true
		}
	}
	return model.Association{}, false
}

// SelectedAssociationID is the selected association id, or "".
func (s State) SelectedAssociationID() string {
	a, _ := s.Selected()
	return a.ID
}

// Store is a publish/subscribe holder of State.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// New creates a store holding initial.
func New(initial State) *Store {
	return &Store{state: initial, subs: make(map[int]func(State))}
}

// Get returns the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to the current state, stores the result and notifies the
// subscribers outside the lock. Subscribers run on the caller's goroutine.
func (s *Store) Update(fn func(State) State) State {
	s.mu.Lock()
	next := fn(s.state)
	next.Associations = slices.Clone(next.Associations)
	s.state = next

	subs := make([]func(State), 0, len(s.subs))
	for _, id := range s.sortedIDs() {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn for future updates and returns the function that
// removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// sortedIDs keeps notification order equal to subscription order.
func (s *Store) sortedIDs() []int {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SignIn records a successful login with the operator's memberships. The
// preferred association is kept when the operator still belongs to it,
// otherwise the first membership is selected.
func SignIn(email string, memberships []model.Association, preferredID string) func(State) State {
	return func(State) State {
		next := State{Email: email, Authenticated: true, Associations: memberships}
		next.SelectedID = preferredID
		if _, ok := next.Selected(); !ok {
			next.SelectedID = ""
			if len(memberships) > 0 {
				next.SelectedID = memberships[0].ID
			}
		}
		return next
	}
}

// SignOut clears the state.
func SignOut(State) State {
	return State{}
}

// Select switches the selected association. Unknown ids leave the state
// unchanged.
func Select(associationID string) func(State) State {
	return func(s State) State {
		for _, a := range s.Associations {
			if a.ID == associationID {
				s.SelectedID = associationID
				return s
			}
		}
		return s
	}
}
