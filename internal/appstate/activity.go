package appstate

import (
	"context"

	"grain-workers/internal/common/config"
	"grain-workers/internal/models"

	"github.com/google/uuid"
)

// MaxFeedbackRecords caps the per-user feedback log; older records drop off.
const MaxFeedbackRecords = 200

type Stats struct {
	DailyNewCards     int `json:"dailyNewCards"`
	ExploredCountries int `json:"exploredCountries"`
	CollectedCards    int `json:"collectedCards"`
}

func (s *Store) CollectedCards(ctx context.Context, userID string) (map[string]models.KnowledgeCard, error) {
	cards := map[string]models.KnowledgeCard{}
	if _, err := s.read(ctx, userID, KeyCollectedCards, &cards); err != nil {
		return nil, err
	}
	if cards == nil {
		cards = map[string]models.KnowledgeCard{}
	}
	return cards, nil
}

func (s *Store) IsCollected(ctx context.Context, userID, cardID string) (bool, error) {
	cards, err := s.CollectedCards(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := cards[cardID]
	return ok, nil
}

// ToggleCollect adds card to the collection, or removes it when already
// there. It reports whether the card is collected afterwards.
func (s *Store) ToggleCollect(ctx context.Context, userID string, card models.KnowledgeCard) (bool, error) {
	defer s.lock(userID)()

	cards, err := s.CollectedCards(ctx, userID)
	if err != nil {
		return false, err
	}
	_, had := cards[card.CardID]
	if had {
		delete(cards, card.CardID)
	} else {
		cards[card.CardID] = card
	}
	if err := s.write(ctx, userID, KeyCollectedCards, cards); err != nil {
		return false, err
	}
	return !had, nil
}

// ViewResult says what a MarkViewed call changed.
type ViewResult struct {
	NewToday   bool `json:"newToday"`
	NewCountry bool `json:"newCountry"`
}

// MarkViewed records card in today's list and its country as explored.
// Repeat views of the same card on the same day are no-ops.
func (s *Store) MarkViewed(ctx context.Context, userID string, card models.KnowledgeCard) (ViewResult, error) {
	defer s.lock(userID)()

	var res ViewResult
	day := s.dayKey()

	viewed := map[string][]string{}
	if _, err := s.read(ctx, userID, KeyViewedByDay, &viewed); err != nil {
		return res, err
	}
	if viewed == nil {
		viewed = map[string][]string{}
	}
	if !contains(viewed[day], card.CardID) {
		viewed[day] = append(viewed[day], card.CardID)
		if err := s.write(ctx, userID, KeyViewedByDay, viewed); err != nil {
			return res, err
		}
		res.NewToday = true
	}

	var explored []string
	if _, err := s.read(ctx, userID, KeyExploredCountries, &explored); err != nil {
		return res, err
	}
	if card.CountryID != "" && !contains(explored, card.CountryID) {
		explored = append(explored, card.CountryID)
		if err := s.write(ctx, userID, KeyExploredCountries, explored); err != nil {
			return res, err
		}
		res.NewCountry = true
	}
	return res, nil
}

func (s *Store) ExploredCountries(ctx context.Context, userID string) ([]string, error) {
	explored := []string{}
	if _, err := s.read(ctx, userID, KeyExploredCountries, &explored); err != nil {
		return nil, err
	}
	return explored, nil
}

// Stats counts today's newly viewed cards, explored countries and the
// collection size.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	viewed := map[string][]string{}
	if _, err := s.read(ctx, userID, KeyViewedByDay, &viewed); err != nil {
		return Stats{}, err
	}
	explored, err := s.ExploredCountries(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	collected, err := s.CollectedCards(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		DailyNewCards:     len(viewed[s.dayKey()]),
		ExploredCountries: len(explored),
		CollectedCards:    len(collected),
	}, nil
}

// APIConfig returns the user's saved provider config, or nil.
func (s *Store) APIConfig(ctx context.Context, userID string) (*models.APIConfig, error) {
	var cfg models.APIConfig
	ok, err := s.read(ctx, userID, KeyAPIConfig, &cfg)
	if err != nil || !ok {
		return nil, err
	}
	cfg = models.NormalizeAPIConfig(cfg)
	return &cfg, nil
}

// SaveAPIConfig normalizes and stores cfg and drops the generated bundle.
func (s *Store) SaveAPIConfig(ctx context.Context, userID string, cfg models.APIConfig) (models.APIConfig, error) {
	defer s.lock(userID)()

	cfg = models.NormalizeAPIConfig(cfg)
	if err := s.write(ctx, userID, KeyAPIConfig, cfg); err != nil {
		return models.APIConfig{}, err
	}
	return cfg, s.remove(ctx, userID, KeyRemoteBundle)
}

// ProviderConfig picks the config for one call: an explicit per-call config,
// then the user's saved one, then def.
func (s *Store) ProviderConfig(ctx context.Context, userID string, perCall *models.APIConfig, def models.APIConfig) (models.APIConfig, error) {
	if perCall == nil {
		saved, err := s.APIConfig(ctx, userID)
		if err != nil {
			return models.APIConfig{}, err
		}
		perCall = saved
	}
	return config.ResolveAPIConfig(perCall, def), nil
}

func (s *Store) ResetAPIConfig(ctx context.Context, userID string) error {
	defer s.lock(userID)()

	if err := s.remove(ctx, userID, KeyAPIConfig); err != nil {
		return err
	}
	return s.remove(ctx, userID, KeyRemoteBundle)
}

// FeedbackRecord is a locally kept feedback submission.
type FeedbackRecord struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	models.FeedbackRequest
}

// RecordFeedback prepends req to the user's log, keeping the newest
// MaxFeedbackRecords entries.
func (s *Store) RecordFeedback(ctx context.Context, userID string, req models.FeedbackRequest) (FeedbackRecord, error) {
	defer s.lock(userID)()

	rec := FeedbackRecord{ID: uuid.NewString(), CreatedAt: s.now().UnixMilli(), FeedbackRequest: req}
	log, err := s.Feedback(ctx, userID)
	if err != nil {
		return FeedbackRecord{}, err
	}
	log = append([]FeedbackRecord{rec}, log...)
	if len(log) > MaxFeedbackRecords {
		log = log[:MaxFeedbackRecords]
	}
	return rec, s.write(ctx, userID, KeyFeedback, log)
}

// Feedback returns the log, newest first.
func (s *Store) Feedback(ctx context.Context, userID string) ([]FeedbackRecord, error) {
	var log []FeedbackRecord
	if _, err := s.read(ctx, userID, KeyFeedback, &log); err != nil {
		return nil, err
	}
	return log, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
