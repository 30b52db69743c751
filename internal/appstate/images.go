package appstate

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// SetCardImage caches uri for a card; an empty uri removes the entry. Each
// user keeps at most ImageCacheSize images, least recently used first out.
func (s *Store) SetCardImage(userID, cardID, uri string) {
	s.imagesMu.Lock()
	defer s.imagesMu.Unlock()

	user := userKey(userID)
	cache, ok := s.images.Get(user)
	if uri == "" {
		if ok {
			cache.Remove(cardID)
		}
		return
	}
	if !ok {
		// size is validated in NewStore
		cache, _ = lru.New[string, string](s.imageSize)
		s.images.Add(user, cache)
	}
	cache.Add(cardID, uri)
}

func (s *Store) CardImage(userID, cardID string) (string, bool) {
	s.imagesMu.Lock()
	defer s.imagesMu.Unlock()

	cache, ok := s.images.Get(userKey(userID))
	if !ok {
		return "", false
	}
	return cache.Get(cardID)
}

// CardImageCount is the number of cached images for a user.
func (s *Store) CardImageCount(userID string) int {
	s.imagesMu.Lock()
	defer s.imagesMu.Unlock()

	cache, ok := s.images.Get(userKey(userID))
	if !ok {
		return 0
	}
	return cache.Len()
}

func (s *Store) clearImages(userID string) {
	s.imagesMu.Lock()
	defer s.imagesMu.Unlock()
	s.images.Remove(userKey(userID))
}
