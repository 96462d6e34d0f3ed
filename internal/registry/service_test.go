package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type fakeClient struct {
	mu         sync.Mutex
	notReady   int
	requestErr error
	fetches    int
	requests   int
	doc        *Document
}

func (f *fakeClient) RequestDocuments(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.requestErr != nil {
		return "", f.requestErr
	}
	return "k-1", nil
}

func (f *fakeClient) FetchDocument(context.Context, string, string) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetches <= f.notReady {
		return nil, ErrDocumentNotReady
	}
	return f.doc, nil
}

type memoryCache struct {
	docs map[string]*Document
}

func (c *memoryCache) Get(_ context.Context, id string) (*Document, bool, error) {
	doc, ok := c.docs[id]
	return doc, ok, nil
}

func (c *memoryCache) Put(_ context.Context, id string, doc *Document) error {
	c.docs[id] = doc
	return nil
}

type ServiceSuite struct {
	suite.Suite
	client *fakeClient
	cache  *memoryCache
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.client = &fakeClient{doc: &Document{Business: Business{Identifier: "BC0772006", GoodStanding: true}}}
	s.cache = &memoryCache{docs: map[string]*Document{}}
}

func (s *ServiceSuite) service(attempts int) *Service {
	return NewService(s.client, WithCache(s.cache), WithPolling(attempts, time.Millisecond))
}

func (s *ServiceSuite) TestPollsUntilReady() {
	s.client.notReady = 2

	doc, err := s.service(5).Lookup(context.Background(), "BC0772006")
	s.Require().NoError(err)
	s.Equal("BC0772006", doc.Business.Identifier)
	s.Equal(3, s.client.fetches)
	s.Equal(1, s.client.requests)
}

func (s *ServiceSuite) TestGivesUpAfterAttempts() {
	s.client.notReady = 10

	_, err := s.service(3).Lookup(context.Background(), "BC0772006")
	s.ErrorIs(err, ErrDocumentNotReady)
	s.Equal(ErrorTimeout, Category(err))
	s.Equal(3, s.client.fetches)
	s.Empty(s.cache.docs)
}

func (s *ServiceSuite) TestCachesDocuments() {
	svc := s.service(3)

	_, err := svc.Lookup(context.Background(), "BC0772006")
	s.Require().NoError(err)
	_, err = svc.Lookup(context.Background(), "BC0772006")
	s.Require().NoError(err)

	s.Equal(1, s.client.fetches)
}

func (s *ServiceSuite) TestNotFoundIsNotCached() {
	s.client.requestErr = newError(ErrorNotFound, "business not found", nil)

	_, err := s.service(3).Lookup(context.Background(), "BC0000000")
	s.True(IsNotFound(err))
	s.Empty(s.cache.docs)
	s.Equal(1, s.client.requests)
}

func (s *ServiceSuite) TestCancelledContextStopsPolling() {
	s.client.notReady = 10
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(s.client, WithPolling(5, time.Hour)).Lookup(ctx, "BC0772006")
	s.ErrorIs(err, context.Canceled)
}
