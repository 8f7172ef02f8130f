package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	args := m.Called(ctx, pageURL)
	return args.String(0), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Persist(ctx context.Context, scraped *models.ScrapedProduct) (*models.Product, error) {
	args := m.Called(ctx, scraped)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

const doorURL = "https://www.thaiwatsadu.com/th/product/door-60272160"

const doorHTML = `<html><head>
<script type="application/ld+json">
{"@type":"Product","name":"ประตู HDF บานเรียบ","brand":{"name":"HOLZTÜR"},
"offers":{"price":1850,"priceCurrency":"THB"}}
</script>
</head><body></body></html>`

func TestServiceScrapeProduct(t *testing.T) {
	mockFetcher := new(MockFetcher)
	mockFetcher.On("FetchPage", mock.Anything, doorURL).Return(doorHTML, nil)

	svc := NewService(mockFetcher, nil)
	product, err := svc.ScrapeProduct(context.Background(), doorURL)

	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "60272160", product.SKU)
	assert.Equal(t, "ประตู HDF บานเรียบ", product.Name)
	require.NotNil(t, product.CurrentPrice)
	assert.Equal(t, 1850.0, *product.CurrentPrice)
	mockFetcher.AssertExpectations(t)
}

func TestServiceScrapeProductFetchError(t *testing.T) {
	mockFetcher := new(MockFetcher)
	mockFetcher.On("FetchPage", mock.Anything, doorURL).Return("", errors.New("net::ERR_TIMED_OUT"))

	svc := NewService(mockFetcher, nil)
	product, err := svc.ScrapeProduct(context.Background(), doorURL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch page")
	assert.Nil(t, product)
}

func TestServiceScrapeProductNoProductData(t *testing.T) {
	mockFetcher := new(MockFetcher)
	mockFetcher.On("FetchPage", mock.Anything, doorURL).
		Return(`<html><body><div class="error">ไม่พบสินค้า</div></body></html>`, nil)

	svc := NewService(mockFetcher, nil)
	product, err := svc.ScrapeProduct(context.Background(), doorURL)

	require.Error(t, err)
	assert.Nil(t, product)
}

func TestServiceScrapeProductPersists(t *testing.T) {
	mockFetcher := new(MockFetcher)
	mockFetcher.On("FetchPage", mock.Anything, doorURL).Return(doorHTML, nil)

	mockStore := new(MockStore)
	mockStore.On("Persist", mock.Anything, mock.MatchedBy(func(p *models.ScrapedProduct) bool {
		return p.SKU == "60272160" && p.CurrentPrice != nil
	})).Return(&models.Product{ID: 5, SKU: "60272160"}, nil)

	svc := NewService(mockFetcher, nil)
	svc.AttachStore(mockStore)
	product, err := svc.ScrapeProduct(context.Background(), doorURL)

	require.NoError(t, err)
	require.NotNil(t, product)
	mockStore.AssertExpectations(t)
}

func TestServiceScrapeProductPersistFailure(t *testing.T) {
	mockFetcher := new(MockFetcher)
	mockFetcher.On("FetchPage", mock.Anything, doorURL).Return(doorHTML, nil)

	mockStore := new(MockStore)
	mockStore.On("Persist", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	svc := NewService(mockFetcher, nil)
	svc.AttachStore(mockStore)
	product, err := svc.ScrapeProduct(context.Background(), doorURL)

	// Extraction succeeded, so the product comes back with the error.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist product")
	require.NotNil(t, product)
	assert.Equal(t, "60272160", product.SKU)
}

func TestServiceScrapeBatch(t *testing.T) {
	badURL := "https://www.thaiwatsadu.com/th/product/gone-60000000"

	mockFetcher := new(MockFetcher)
	mockFetcher.On("FetchPage", mock.Anything, doorURL).Return(doorHTML, nil)
	mockFetcher.On("FetchPage", mock.Anything, badURL).Return("", errors.New("bot block detected"))

	svc := NewService(mockFetcher, nil)
	svc.Delay = 0
	results := svc.ScrapeBatch(context.Background(), []string{doorURL, badURL})

	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.Equal(t, doorURL, results[0].URL)
	require.NotNil(t, results[0].Product)
	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Error, "bot block detected")
	mockFetcher.AssertExpectations(t)
}

func TestServiceScrapeBatchCancelledContext(t *testing.T) {
	mockFetcher := new(MockFetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(mockFetcher, nil)
	results := svc.ScrapeBatch(ctx, []string{doorURL, doorURL})

	require.Len(t, results, 2)
	assert.False(t, results[0].OK)
	assert.False(t, results[1].OK)
	mockFetcher.AssertNotCalled(t, "FetchPage", mock.Anything, mock.Anything)
}
