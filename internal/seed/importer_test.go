package seed

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

type MockRetailerStore struct {
	mock.Mock
}

func (m *MockRetailerStore) GetOrCreate(ctx context.Context, retailer models.Retailer) (*models.Retailer, error) {
	args := m.Called(ctx, retailer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Retailer), args.Error(1)
}

type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) Upsert(ctx context.Context, p *models.Product) (*models.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductStore) GetBySKU(ctx context.Context, retailerID, sku string) (*models.Product, error) {
	args := m.Called(ctx, retailerID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) Insert(ctx context.Context, productID int64, price float64) error {
	args := m.Called(ctx, productID, price)
	return args.Error(0)
}

type MockMatchStore struct {
	mock.Mock
}

func (m *MockMatchStore) Upsert(ctx context.Context, match *models.ProductMatch) (int64, error) {
	args := m.Called(ctx, match)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMatchStore) Verify(ctx context.Context, matchID int64, isSame bool) error {
	args := m.Called(ctx, matchID, isSame)
	return args.Error(0)
}

type importerMocks struct {
	retailers *MockRetailerStore
	products  *MockProductStore
	history   *MockHistoryStore
	matches   *MockMatchStore
}

func newTestImporter() (*Importer, *importerMocks) {
	mocks := &importerMocks{
		retailers: new(MockRetailerStore),
		products:  new(MockProductStore),
		history:   new(MockHistoryStore),
		matches:   new(MockMatchStore),
	}
	im := &Importer{
		retailers: mocks.retailers,
		products:  mocks.products,
		history:   mocks.history,
		matches:   mocks.matches,
		logger:    slog.Default(),
	}
	return im, mocks
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const twdDump = `[
  {
    "url": "https://www.thaiwatsadu.com/th/product/door-60272160",
    "retailer": "Thai Watsadu",
    "sku": "60272160",
    "name": "ประตู HDF บานเรียบ",
    "brand": "HOLZTÜR",
    "category": "ประตูและวงกบ",
    "current_price": 1850,
    "original_price": 2190,
    "images": ["https://cdn.thaiwatsadu.com/img/60272160.jpg"]
  },
  {
    "url": "https://www.thaiwatsadu.com/th/product/shelf-60311007",
    "retailer": "Thai Watsadu",
    "sku": "60311007",
    "name": "ชั้นวางของ 4 ชั้น"
  },
  {
    "url": "https://www.thaiwatsadu.com/th/product/nameless",
    "retailer": "Thai Watsadu",
    "sku": ""
  }
]`

func TestImporterImportProducts(t *testing.T) {
	im, mocks := newTestImporter()
	path := writeFile(t, t.TempDir(), "twd_products.json", twdDump)

	twd, _ := models.RetailerByID(models.RetailerThaiWatsadu)
	mocks.retailers.On("GetOrCreate", mock.Anything, twd).Return(&twd, nil)

	mocks.products.On("Upsert", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.SKU == "60272160" &&
			p.RetailerID == models.RetailerThaiWatsadu &&
			p.Name == "ประตู HDF บานเรียบ" &&
			p.Link == "https://www.thaiwatsadu.com/th/product/door-60272160" &&
			p.Image == "https://cdn.thaiwatsadu.com/img/60272160.jpg" &&
			p.CurrentPrice != nil && *p.CurrentPrice == 1850
	})).Return(&models.Product{ID: 101, RetailerID: models.RetailerThaiWatsadu, SKU: "60272160"}, nil)

	mocks.products.On("Upsert", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.SKU == "60311007" && p.CurrentPrice == nil
	})).Return(&models.Product{ID: 102, RetailerID: models.RetailerThaiWatsadu, SKU: "60311007"}, nil)

	mocks.history.On("Insert", mock.Anything, int64(101), 1850.0).Return(nil)

	summary, err := im.ImportProducts(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "twd_products.json", summary.File)
	assert.Equal(t, models.RetailerThaiWatsadu, summary.Retailer)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	mocks.retailers.AssertExpectations(t)
	mocks.products.AssertExpectations(t)
	mocks.history.AssertExpectations(t)
	mocks.history.AssertNumberOfCalls(t, "Insert", 1)
}

func TestImporterImportProductsDryRun(t *testing.T) {
	im, mocks := newTestImporter()
	im.DryRun = true
	path := writeFile(t, t.TempDir(), "twd_products.json", twdDump)

	summary, err := im.ImportProducts(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)

	mocks.retailers.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
	mocks.products.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	mocks.history.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestImporterImportProductsUnknownRetailer(t *testing.T) {
	im, mocks := newTestImporter()
	path := writeFile(t, t.TempDir(), "acme_products.json", `[
  {"url": "https://shop.example.com/item/1", "retailer": "ACME", "sku": "1"}
]`)

	summary, err := im.ImportProducts(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, summary.Retailer)

	mocks.retailers.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
	mocks.products.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestImporterImportProductsUpsertError(t *testing.T) {
	im, mocks := newTestImporter()
	path := writeFile(t, t.TempDir(), "hp_products.json", `[
  {"url": "https://www.homepro.co.th/p/1181631", "retailer": "HomePro", "sku": "1181631", "current_price": 2190}
]`)

	hp, _ := models.RetailerByID(models.RetailerHomePro)
	mocks.retailers.On("GetOrCreate", mock.Anything, hp).Return(&hp, nil)
	mocks.products.On("Upsert", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	summary, err := im.ImportProducts(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 1, summary.Failed)

	mocks.history.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

const homeproMatches = `[
  {"base_sku": "60272160", "competitor_sku": "1181631", "confidence": 0.92, "verified": true},
  {"base_sku": "60311007", "competitor_sku": "1299445"},
  {"base_sku": "60999999", "competitor_sku": "1300000", "confidence": 0.8}
]`

func TestImporterImportMatches(t *testing.T) {
	im, mocks := newTestImporter()
	path := writeFile(t, t.TempDir(), "twd_homepro_matches.json", homeproMatches)

	base1 := &models.Product{ID: 1, RetailerID: models.RetailerThaiWatsadu, SKU: "60272160"}
	base2 := &models.Product{ID: 2, RetailerID: models.RetailerThaiWatsadu, SKU: "60311007"}
	cand1 := &models.Product{ID: 10, RetailerID: models.RetailerHomePro, SKU: "1181631"}
	cand2 := &models.Product{ID: 11, RetailerID: models.RetailerHomePro, SKU: "1299445"}

	mocks.products.On("GetBySKU", mock.Anything, models.RetailerThaiWatsadu, "60272160").Return(base1, nil)
	mocks.products.On("GetBySKU", mock.Anything, models.RetailerThaiWatsadu, "60311007").Return(base2, nil)
	mocks.products.On("GetBySKU", mock.Anything, models.RetailerThaiWatsadu, "60999999").Return(nil, nil)
	mocks.products.On("GetBySKU", mock.Anything, models.RetailerHomePro, "1181631").Return(cand1, nil)
	mocks.products.On("GetBySKU", mock.Anything, models.RetailerHomePro, "1299445").Return(cand2, nil)

	mocks.matches.On("Upsert", mock.Anything, mock.MatchedBy(func(m *models.ProductMatch) bool {
		return m.BaseProductID == 1 && m.CandidateProductID == 10 &&
			m.RetailerID == models.RetailerHomePro &&
			m.MatchType == models.MatchTypeImport &&
			m.IsSame != nil && *m.IsSame &&
			m.ConfidenceScore != nil && *m.ConfidenceScore == 0.92 &&
			m.Reason == "twd_homepro_matches.json"
	})).Return(int64(501), nil)

	mocks.matches.On("Upsert", mock.Anything, mock.MatchedBy(func(m *models.ProductMatch) bool {
		return m.BaseProductID == 2 && m.CandidateProductID == 11 &&
			m.ConfidenceScore != nil && *m.ConfidenceScore == 1.0
	})).Return(int64(502), nil)

	mocks.matches.On("Verify", mock.Anything, int64(501), true).Return(nil)

	summary, err := im.ImportMatches(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, models.RetailerHomePro, summary.Retailer)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	mocks.matches.AssertExpectations(t)
	mocks.matches.AssertNumberOfCalls(t, "Verify", 1)
}

func TestImporterImportMatchesUnknownCompetitor(t *testing.T) {
	im, mocks := newTestImporter()
	path := writeFile(t, t.TempDir(), "twd_acme_matches.json", homeproMatches)

	summary, err := im.ImportMatches(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Empty(t, summary.Retailer)

	mocks.products.AssertNotCalled(t, "GetBySKU", mock.Anything, mock.Anything, mock.Anything)
	mocks.matches.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestImporterRun(t *testing.T) {
	im, mocks := newTestImporter()
	im.DryRun = true

	dir := t.TempDir()
	writeFile(t, dir, "twd_products.json", twdDump)
	writeFile(t, dir, "twd_homepro_matches.json", `[
  {"base_sku": "60272160", "competitor_sku": "1181631", "verified": true}
]`)
	writeFile(t, dir, "notes.txt", "ignore me")

	base := &models.Product{ID: 1, RetailerID: models.RetailerThaiWatsadu, SKU: "60272160"}
	cand := &models.Product{ID: 10, RetailerID: models.RetailerHomePro, SKU: "1181631"}
	mocks.products.On("GetBySKU", mock.Anything, models.RetailerThaiWatsadu, "60272160").Return(base, nil)
	mocks.products.On("GetBySKU", mock.Anything, models.RetailerHomePro, "1181631").Return(cand, nil)

	summary, err := im.Run(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, summary.Products, 1)
	require.Len(t, summary.Matches, 1)

	imported, skipped, failed := summary.ProductTotals()
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 0, failed)

	imported, _, _ = summary.MatchTotals()
	assert.Equal(t, 1, imported)

	mocks.matches.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestImporterRunEmptyDir(t *testing.T) {
	im, _ := newTestImporter()

	_, err := im.Run(context.Background(), t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no product dumps or match files")
}

func TestCompetitorFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		wantID string
		wantOK bool
	}{
		{"display name", "twd_homepro_matches.json", models.RetailerHomePro, true},
		{"short code", "twd_hp_matches.json", models.RetailerHomePro, true},
		{"global house", "twd_globalhouse_matches.json", models.RetailerGlobalHouse, true},
		{"dohome", "twd_dohome_matches.json", models.RetailerDoHome, true},
		{"uppercase", "TWD_MEGAHOME_MATCHES.JSON", models.RetailerMegaHome, true},
		{"base against itself", "twd_twd_matches.json", "", false},
		{"unknown competitor", "twd_acme_matches.json", "", false},
		{"not a match file", "twd_products.json", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retailer, ok := competitorFromFilename(tt.file)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, retailer.ID)
			}
		})
	}
}
