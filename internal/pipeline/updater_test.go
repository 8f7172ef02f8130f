package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) ScrapeProduct(ctx context.Context, pageURL string) (*models.ScrapedProduct, error) {
	args := m.Called(ctx, pageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScrapedProduct), args.Error(1)
}

type MockProductSource struct {
	mock.Mock
}

func (m *MockProductSource) ListByRetailer(ctx context.Context, retailerID string, limit int) ([]models.Product, error) {
	args := m.Called(ctx, retailerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) Create(ctx context.Context, totalProducts int) (*models.UpdateRun, error) {
	args := m.Called(ctx, totalProducts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UpdateRun), args.Error(1)
}

func (m *MockRunRecorder) UpdateProgress(ctx context.Context, runID int64, checked, changed, failed int) error {
	args := m.Called(ctx, runID, checked, changed, failed)
	return args.Error(0)
}

func (m *MockRunRecorder) Finish(ctx context.Context, runID int64, status string, checked, changed, failed int) error {
	args := m.Called(ctx, runID, status, checked, changed, failed)
	return args.Error(0)
}

func catalogProduct(id int64, retailerID, sku, link string, price float64) models.Product {
	return models.Product{
		ID:           id,
		RetailerID:   retailerID,
		SKU:          sku,
		Link:         link,
		CurrentPrice: models.Float64Ptr(price),
	}
}

func scrapedWithPrice(price float64) *models.ScrapedProduct {
	p := models.NewScrapedProduct("")
	p.CurrentPrice = models.Float64Ptr(price)
	return p
}

func newTestUpdater(s *MockScraper, products *MockProductSource, runs *MockRunRecorder) *Updater {
	u := NewUpdater(s, products, runs, nil)
	u.MinDelay = 0
	u.MaxDelay = 0
	return u
}

func TestUpdaterRun(t *testing.T) {
	mockScraper := new(MockScraper)
	mockProducts := new(MockProductSource)
	mockRuns := new(MockRunRecorder)

	twdA := catalogProduct(1, "twd", "60211991", "https://www.thaiwatsadu.com/th/product/a-60211991", 100)
	twdB := catalogProduct(2, "twd", "60211992", "https://www.thaiwatsadu.com/th/product/b-60211992", 200)
	hpC := catalogProduct(3, "hp", "246800", "https://www.homepro.co.th/p/246800", 50)

	mockProducts.On("ListByRetailer", mock.Anything, "twd", 0).Return([]models.Product{twdA, twdB}, nil)
	mockProducts.On("ListByRetailer", mock.Anything, "hp", 0).Return([]models.Product{hpC}, nil)

	// A unchanged, B dropped to 180, C fails.
	mockScraper.On("ScrapeProduct", mock.Anything, twdA.Link).Return(scrapedWithPrice(100), nil)
	mockScraper.On("ScrapeProduct", mock.Anything, twdB.Link).Return(scrapedWithPrice(180), nil)
	mockScraper.On("ScrapeProduct", mock.Anything, hpC.Link).Return(nil, errors.New("bot block detected"))

	mockRuns.On("Create", mock.Anything, 3).Return(&models.UpdateRun{ID: 9}, nil)
	mockRuns.On("UpdateProgress", mock.Anything, int64(9), mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRuns.On("Finish", mock.Anything, int64(9), models.RunStatusCompleted, 2, 1, 1).Return(nil)

	u := newTestUpdater(mockScraper, mockProducts, mockRuns)
	u.Retailers = []string{"twd", "hp"}

	summary, err := u.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(9), summary.RunID)
	assert.Equal(t, models.RunStatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.Failed)
	mockRuns.AssertExpectations(t)
	mockRuns.AssertNumberOfCalls(t, "UpdateProgress", 3)
	mockScraper.AssertExpectations(t)
}

func TestUpdaterRunNoProducts(t *testing.T) {
	mockScraper := new(MockScraper)
	mockProducts := new(MockProductSource)
	mockRuns := new(MockRunRecorder)

	mockProducts.On("ListByRetailer", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Product{}, nil)

	u := newTestUpdater(mockScraper, mockProducts, mockRuns)
	summary, err := u.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, summary.Status)
	assert.Equal(t, 0, summary.Total)
	mockRuns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdaterRunSkipsDisabledAndUnknownRetailers(t *testing.T) {
	mockScraper := new(MockScraper)
	mockProducts := new(MockProductSource)
	mockRuns := new(MockRunRecorder)

	mockProducts.On("ListByRetailer", mock.Anything, "twd", 0).Return([]models.Product{}, nil)

	u := newTestUpdater(mockScraper, mockProducts, mockRuns)
	u.Retailers = []string{"twd", "hp", "acme"}
	u.Overrides = map[string]RetailerConfig{"hp": {Disabled: true}}

	_, err := u.Run(context.Background())

	require.NoError(t, err)
	mockProducts.AssertCalled(t, "ListByRetailer", mock.Anything, "twd", 0)
	mockProducts.AssertNotCalled(t, "ListByRetailer", mock.Anything, "hp", 0)
	mockProducts.AssertNotCalled(t, "ListByRetailer", mock.Anything, "acme", 0)
}

func TestUpdaterRunCancelledContext(t *testing.T) {
	mockScraper := new(MockScraper)
	mockProducts := new(MockProductSource)
	mockRuns := new(MockRunRecorder)

	twdA := catalogProduct(1, "twd", "60211991", "https://www.thaiwatsadu.com/th/product/a-60211991", 100)
	twdB := catalogProduct(2, "twd", "60211992", "https://www.thaiwatsadu.com/th/product/b-60211992", 200)

	mockProducts.On("ListByRetailer", mock.Anything, "twd", 0).Return([]models.Product{twdA, twdB}, nil)
	mockScraper.On("ScrapeProduct", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	mockRuns.On("Create", mock.Anything, 2).Return(&models.UpdateRun{ID: 4}, nil)
	mockRuns.On("Finish", mock.Anything, int64(4), models.RunStatusFailed, 0, 0, 0).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := newTestUpdater(mockScraper, mockProducts, mockRuns)
	u.Retailers = []string{"twd"}

	summary, err := u.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, summary.Status)
	assert.Equal(t, 0, summary.Checked)
	// The worker stops at the first product once the context is gone.
	mockScraper.AssertNumberOfCalls(t, "ScrapeProduct", 1)
	mockRuns.AssertExpectations(t)
}

func TestUpdaterRunCreateError(t *testing.T) {
	mockScraper := new(MockScraper)
	mockProducts := new(MockProductSource)
	mockRuns := new(MockRunRecorder)

	twdA := catalogProduct(1, "twd", "60211991", "https://www.thaiwatsadu.com/th/product/a-60211991", 100)
	mockProducts.On("ListByRetailer", mock.Anything, "twd", 0).Return([]models.Product{twdA}, nil)
	mockRuns.On("Create", mock.Anything, 1).Return(nil, errors.New("connection refused"))

	u := newTestUpdater(mockScraper, mockProducts, mockRuns)
	u.Retailers = []string{"twd"}

	_, err := u.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create update run")
	mockScraper.AssertNotCalled(t, "ScrapeProduct", mock.Anything, mock.Anything)
}

func TestUpdaterDelaysFor(t *testing.T) {
	u := &Updater{
		MinDelay: 3 * time.Second,
		MaxDelay: 8 * time.Second,
		Overrides: map[string]RetailerConfig{
			"gbh": {MinDelay: 10 * time.Second, MaxDelay: 20 * time.Second},
			"dh":  {MinDelay: 12 * time.Second},
		},
	}

	min, max := u.delaysFor("twd")
	assert.Equal(t, 3*time.Second, min)
	assert.Equal(t, 8*time.Second, max)

	min, max = u.delaysFor("gbh")
	assert.Equal(t, 10*time.Second, min)
	assert.Equal(t, 20*time.Second, max)

	// Partial override keeps the window sane.
	min, max = u.delaysFor("dh")
	assert.Equal(t, 12*time.Second, min)
	assert.Equal(t, 12*time.Second, max)
}
