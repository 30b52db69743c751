package appstate

import (
	"context"
	"errors"

	"grain-workers/internal/catalog"
	"grain-workers/internal/completion"
	"grain-workers/internal/models"
)

// Session is what the user is currently comparing.
type Session struct {
	ObjectName    string `json:"objectName"`
	ObjectGeneric string `json:"objectGeneric"`
	PhotoURI      string `json:"photoUri,omitempty"`
	CategoryID    string `json:"categoryId"`
	CategoryName  string `json:"categoryName"`
	CountryA      string `json:"countryA"`
	CountryB      string `json:"countryB"`
}

// DefaultSession is the demo egg comparison between France and Japan.
func DefaultSession() Session {
	first := catalog.Categories[0]
	return Session{
		ObjectName:    catalog.DemoObject.ObjectName,
		ObjectGeneric: catalog.DemoObject.ObjectGeneric,
		CategoryID:    first.ID,
		CategoryName:  first.Name,
		CountryA:      "FR",
		CountryB:      "JP",
	}
}

// SessionPatch updates only the fields that are set.
type SessionPatch struct {
	ObjectName    *string `json:"objectName,omitempty"`
	ObjectGeneric *string `json:"objectGeneric,omitempty"`
	PhotoURI      *string `json:"photoUri,omitempty"`
	CategoryID    *string `json:"categoryId,omitempty"`
	CategoryName  *string `json:"categoryName,omitempty"`
	CountryA      *string `json:"countryA,omitempty"`
	CountryB      *string `json:"countryB,omitempty"`
}

// invalidatesContent reports whether the patch changes what generated
// content is about.
func (p SessionPatch) invalidatesContent() bool {
	return p.ObjectName != nil || p.ObjectGeneric != nil || p.CategoryID != nil ||
		p.CountryA != nil || p.CountryB != nil
}

func (p SessionPatch) apply(s Session) Session {
	if p.ObjectName != nil {
		s.ObjectName = *p.ObjectName
	}
	if p.ObjectGeneric != nil {
		s.ObjectGeneric = *p.ObjectGeneric
	}
	if p.PhotoURI != nil {
		s.PhotoURI = *p.PhotoURI
	}
	if p.CategoryID != nil {
		s.CategoryID = *p.CategoryID
		s.CategoryName = catalog.CategoryName(s.CategoryID)
	}
	if p.CategoryName != nil {
		s.CategoryName = *p.CategoryName
	}
	if p.CountryA != nil {
		s.CountryA = catalog.NormalizeCountryID(*p.CountryA)
	}
	if p.CountryB != nil {
		s.CountryB = catalog.NormalizeCountryID(*p.CountryB)
	}
	return s
}

// Session returns the stored session or DefaultSession.
func (s *Store) Session(ctx context.Context, userID string) (Session, error) {
	sess := DefaultSession()
	if _, err := s.read(ctx, userID, KeySession, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SetSession applies patch. Changing the object, category or either country
// drops the generated bundle and the card images.
func (s *Store) SetSession(ctx context.Context, userID string, patch SessionPatch) (Session, error) {
	defer s.lock(userID)()

	sess, err := s.Session(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if patch.invalidatesContent() {
		if err := s.invalidate(ctx, userID); err != nil {
			return Session{}, err
		}
	}
	sess = patch.apply(sess)
	return sess, s.write(ctx, userID, KeySession, sess)
}

// SwapCountries exchanges country A and B and drops generated content.
func (s *Store) SwapCountries(ctx context.Context, userID string) (Session, error) {
	defer s.lock(userID)()

	sess, err := s.Session(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := s.invalidate(ctx, userID); err != nil {
		return Session{}, err
	}
	sess.CountryA, sess.CountryB = sess.CountryB, sess.CountryA
	return sess, s.write(ctx, userID, KeySession, sess)
}

func (s *Store) invalidate(ctx context.Context, userID string) error {
	s.clearImages(userID)
	return s.remove(ctx, userID, KeyRemoteBundle)
}

// BundleContext is the request a bundle was generated for. Stages is empty
// when all five were requested.
type BundleContext struct {
	CategoryID string              `json:"categoryId"`
	CountryA   string              `json:"countryA"`
	CountryB   string              `json:"countryB"`
	Stages     []models.NodeTypeID `json:"stages,omitempty"`
}

// ContextOf captures the session a request is about to be made for.
func ContextOf(s Session, stages ...models.NodeTypeID) BundleContext {
	return BundleContext{CategoryID: s.CategoryID, CountryA: s.CountryA, CountryB: s.CountryB, Stages: stages}
}

// Matches reports whether sess still describes the same comparison.
func (c BundleContext) Matches(sess Session) bool {
	return c.CategoryID == sess.CategoryID && c.CountryA == sess.CountryA && c.CountryB == sess.CountryB
}

// RemoteBundle is a completed generation result tagged with its context.
type RemoteBundle struct {
	Context BundleContext         `json:"context"`
	Data    models.GenerateResult `json:"data"`
}

// ErrStaleBundle is returned by SetRemoteBundle when the session moved on
// while the request was in flight.
var ErrStaleBundle = errors.New("session changed while generating")

// SetRemoteBundle completes data against bc and stores it. When bc no longer
// matches the session nothing is written; the completed bundle is still
// returned alongside ErrStaleBundle.
func (s *Store) SetRemoteBundle(ctx context.Context, userID string, bc BundleContext, data models.GenerateResult) (RemoteBundle, completion.Stats, error) {
	defer s.lock(userID)()

	completed, stats := completion.CompleteWithStats(data, completion.Context{
		CategoryID: bc.CategoryID,
		CountryA:   bc.CountryA,
		CountryB:   bc.CountryB,
		Stages:     bc.Stages,
	})
	bundle := RemoteBundle{Context: bc, Data: completed}

	sess, err := s.Session(ctx, userID)
	if err != nil {
		return RemoteBundle{}, completion.Stats{}, err
	}
	if !bc.Matches(sess) {
		s.logger.Warn("Dropping generation result for a stale session", map[string]interface{}{
			"userId":    userID,
			"requested": bc.CountryA + "/" + bc.CountryB,
			"current":   sess.CountryA + "/" + sess.CountryB,
		})
		return bundle, stats, ErrStaleBundle
	}
	if err := s.write(ctx, userID, KeyRemoteBundle, bundle); err != nil {
		return RemoteBundle{}, completion.Stats{}, err
	}
	return bundle, stats, nil
}

// ActiveBundle returns the stored bundle when its context still matches the
// session, otherwise nil.
func (s *Store) ActiveBundle(ctx context.Context, userID string) (*RemoteBundle, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.activeBundle(ctx, userID, sess)
}

func (s *Store) activeBundle(ctx context.Context, userID string, sess Session) (*RemoteBundle, error) {
	var bundle RemoteBundle
	ok, err := s.read(ctx, userID, KeyRemoteBundle, &bundle)
	if err != nil || !ok {
		return nil, err
	}
	if !bundle.Context.Matches(sess) {
		return nil, nil
	}
	return &bundle, nil
}

func (s *Store) ClearRemoteBundle(ctx context.Context, userID string) error {
	return s.remove(ctx, userID, KeyRemoteBundle)
}
