package appstate

import (
	"context"
	"strings"

	"grain-workers/internal/catalog"
	"grain-workers/internal/completion"
	"grain-workers/internal/models"
)

// Snapshot is a consistent read of everything needed to resolve content for
// one user. A nil Bundle means there is no bundle for the current session.
type Snapshot struct {
	Session   Session
	Bundle    *RemoteBundle
	Collected map[string]models.KnowledgeCard
}

func (s *Store) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	bundle, err := s.activeBundle(ctx, userID, sess)
	if err != nil {
		return nil, err
	}
	collected, err := s.CollectedCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Session: sess, Bundle: bundle, Collected: collected}, nil
}

func (v *Snapshot) remoteCard(match func(models.KnowledgeCard) bool) (models.KnowledgeCard, bool) {
	if v.Bundle == nil {
		return models.KnowledgeCard{}, false
	}
	for _, c := range v.Bundle.Data.Cards {
		if match(c) {
			return c, true
		}
	}
	return models.KnowledgeCard{}, false
}

// ResolveCard looks a card up in the active bundle, then the collection,
// then the bundled demo cards.
func (v *Snapshot) ResolveCard(cardID string) (models.KnowledgeCard, bool) {
	if c, ok := v.remoteCard(func(c models.KnowledgeCard) bool { return c.CardID == cardID }); ok {
		return c, true
	}
	if c, ok := v.Collected[cardID]; ok {
		return c, true
	}
	return catalog.Card(cardID)
}

// ResolveDialogue prefers a non-empty line from the active bundle.
func (v *Snapshot) ResolveDialogue(node models.NodeTypeID, countryID string) string {
	if v.Bundle != nil {
		for _, d := range v.Bundle.Data.Dialogues {
			if d.NodeTypeID == node && d.CountryID == countryID && strings.TrimSpace(d.Text) != "" {
				return d.Text
			}
		}
	}
	return catalog.Dialogue(node, countryID)
}

func (v *Snapshot) ResolveChapter(categoryID string, node models.NodeTypeID) models.ChapterMeta {
	if v.Bundle != nil {
		for _, ch := range v.Bundle.Data.Chapters {
			if ch.NodeTypeID == node {
				return ch
			}
		}
	}
	return catalog.Chapter(categoryID, node)
}

// SessionCards returns the five comparison rows for the session. Without an
// active bundle it uses the demo content when both countries have it and
// placeholders otherwise. Bundle cards are matched by slot, so a card whose
// id does not follow the canonical format still lands in its row.
func (v *Snapshot) SessionCards() []catalog.SessionRow {
	sess := v.Session
	if v.Bundle == nil {
		if rows, ok := catalog.SessionCards(sess.CategoryID, sess.CountryA, sess.CountryB); ok {
			return rows
		}
	}

	rows := make([]catalog.SessionRow, 0, len(catalog.NodeTypes))
	for _, n := range catalog.NodeTypes {
		rows = append(rows, catalog.SessionRow{
			NodeTypeID: n.ID,
			A:          v.slotCard(sess.CountryA, n.ID),
			B:          v.slotCard(sess.CountryB, n.ID),
			Chapter:    v.ResolveChapter(sess.CategoryID, n.ID),
		})
	}
	return rows
}

func (v *Snapshot) slotCard(countryID string, node models.NodeTypeID) models.KnowledgeCard {
	c, ok := v.remoteCard(func(c models.KnowledgeCard) bool {
		return c.NodeTypeID == node && c.CountryID == countryID
	})
	if ok {
		return c
	}
	return completion.PlaceholderCard(countryID, v.Session.CategoryID, node)
}
