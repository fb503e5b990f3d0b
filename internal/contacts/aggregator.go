// Package contacts derives each user's DM contact list from persisted
// message history: every distinct conversation partner, ordered by how
// recently the two last exchanged a message, joined with the partner's
// public profile.
package contacts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/echodm/chat-server/internal/store"
)

// Summary is one contact list entry: the partner's public profile and the
// timestamp of the most recent message exchanged with them. It is computed
// on demand and never persisted.
type Summary struct {
	store.Profile
	LastMessageTime time.Time
}

// Aggregator answers contact list and contact search queries. It is
// read-only: it never writes to either store.
type Aggregator struct {
	messages store.MessageStore
	users    store.UserStore
}

// NewAggregator wires the contact aggregator.
func NewAggregator(messages store.MessageStore, users store.UserStore) *Aggregator {
	return &Aggregator{messages: messages, users: users}
}

// Contacts returns the viewer's contact list, most recently active
// conversation first. Partners with equal timestamps are ordered by partner
// ID so the result is deterministic. If the store is unreachable the whole
// operation fails; no partial list is returned.
func (a *Aggregator) Contacts(ctx context.Context, viewer string) ([]Summary, error) {
	activities, err := a.messages.LatestPerContact(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("contacts: latest per contact for %s: %w", viewer, err)
	}

	sort.Slice(activities, func(i, j int) bool {
		ti, tj := activities[i].LastMessageTime, activities[j].LastMessageTime
		if ti.Equal(tj) {
			return activities[i].PartnerID < activities[j].PartnerID
		}
		return ti.After(tj)
	})

	summaries := make([]Summary, 0, len(activities))
	for _, act := range activities {
		partner, err := a.users.FindByID(ctx, act.PartnerID)
		if err == store.ErrNotFound {
			// Partner account no longer exists; its history stays but it has
			// no contact entry.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("contacts: join partner %s: %w", act.PartnerID, err)
		}
		summaries = append(summaries, Summary{
			Profile:         partner.Profile(),
			LastMessageTime: act.LastMessageTime,
		})
	}
	return summaries, nil
}

// Search returns the public profiles of users matching the term, excluding
// the viewer themselves.
func (a *Aggregator) Search(ctx context.Context, viewer, term string) ([]store.Profile, error) {
	if term == "" {
		return nil, fmt.Errorf("contacts: empty search term")
	}

	users, err := a.users.Search(ctx, viewer, term)
	if err != nil {
		return nil, fmt.Errorf("contacts: search %q: %w", term, err)
	}

	profiles := make([]store.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles, nil
}
