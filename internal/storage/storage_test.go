package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

func scrapedFixture(rawURL, sku, name string, price float64) *models.ScrapedProduct {
	product := models.NewScrapedProduct(rawURL)
	product.SKU = sku
	product.Name = name
	product.CurrentPrice = models.Float64Ptr(price)
	return product
}

func TestResultStoreGroupsByRetailer(t *testing.T) {
	dir := t.TempDir()

	store, err := NewResultStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Add(scrapedFixture("https://www.thaiwatsadu.com/th/product/door-60272160", "60272160", "ประตู HDF บานเรียบ", 1850)))
	require.NoError(t, store.Add(scrapedFixture("https://www.homepro.co.th/p/1181631", "1181631", "สว่านไฟฟ้า MAKITA", 2190)))
	require.NoError(t, store.Add(scrapedFixture("https://www.thaiwatsadu.com/th/product/drill-60309611", "60309611", "สว่านโรตารี่", 2590)))

	require.NoError(t, store.Flush())

	assert.Equal(t, map[string]int{
		models.RetailerThaiWatsadu: 2,
		models.RetailerHomePro:     1,
	}, store.Counts())

	data, err := os.ReadFile(filepath.Join(dir, "twd_products.json"))
	require.NoError(t, err)

	var dumped []*models.ScrapedProduct
	require.NoError(t, json.Unmarshal(data, &dumped))
	require.Len(t, dumped, 2)
	assert.Equal(t, "60272160", dumped[0].SKU)
	assert.Equal(t, "60309611", dumped[1].SKU)

	_, err = os.Stat(filepath.Join(dir, "hp_products.json"))
	assert.NoError(t, err)
}

func TestResultStoreReplacesDuplicateSKU(t *testing.T) {
	store, err := NewResultStore(t.TempDir())
	require.NoError(t, err)

	first := scrapedFixture("https://www.thaiwatsadu.com/th/product/door-60272160", "60272160", "ประตู HDF", 1990)
	second := scrapedFixture("https://www.thaiwatsadu.com/th/product/door-60272160", "60272160", "ประตู HDF บานเรียบ", 1850)

	require.NoError(t, store.Add(first))
	require.NoError(t, store.Add(second))

	assert.Equal(t, map[string]int{models.RetailerThaiWatsadu: 1}, store.Counts())
	require.NoError(t, store.Flush())

	data, err := os.ReadFile(store.FilePath(models.RetailerThaiWatsadu))
	require.NoError(t, err)

	var dumped []*models.ScrapedProduct
	require.NoError(t, json.Unmarshal(data, &dumped))
	require.Len(t, dumped, 1)
	assert.Equal(t, "ประตู HDF บานเรียบ", dumped[0].Name)
	assert.InDelta(t, 1850, *dumped[0].CurrentPrice, 0.001)
}

func TestResultStoreMergesExistingDump(t *testing.T) {
	dir := t.TempDir()

	seed := []*models.ScrapedProduct{
		scrapedFixture("https://www.dohome.co.th/th/product/smart-door-x1", "10334455", "ประตูบานเลื่อน", 3290),
	}
	data, err := json.MarshalIndent(seed, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dh_products.json"), data, 0644))

	store, err := NewResultStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Add(scrapedFixture("https://www.dohome.co.th/th/product/gate-20998877", "20998877", "ประตูรั้วเหล็ก", 5490)))
	require.NoError(t, store.Flush())

	reread, err := os.ReadFile(store.FilePath(models.RetailerDoHome))
	require.NoError(t, err)

	var dumped []*models.ScrapedProduct
	require.NoError(t, json.Unmarshal(reread, &dumped))
	require.Len(t, dumped, 2)
	assert.Equal(t, "10334455", dumped[0].SKU)
	assert.Equal(t, "20998877", dumped[1].SKU)
}

func TestResultStoreUnknownRetailer(t *testing.T) {
	store, err := NewResultStore(t.TempDir())
	require.NoError(t, err)

	product := scrapedFixture("https://shop.example.com/item/99", "", "Mystery Product", 100)
	require.NoError(t, store.Add(product))
	require.NoError(t, store.Flush())

	assert.Equal(t, map[string]int{"unknown": 1}, store.Counts())

	_, err = os.Stat(store.FilePath("unknown"))
	assert.NoError(t, err)
}

func TestResultStoreRetailerCodeFallsBackToName(t *testing.T) {
	store, err := NewResultStore(t.TempDir())
	require.NoError(t, err)

	product := scrapedFixture("https://cdn.cache.local/mirror/page", "553311", "กระเบื้องแกรนิตโต้", 890)
	product.Retailer = "Global House"

	require.NoError(t, store.Add(product))
	assert.Equal(t, map[string]int{models.RetailerGlobalHouse: 1}, store.Counts())
}

func TestResultStoreAddBatchSkipsNil(t *testing.T) {
	store, err := NewResultStore(t.TempDir())
	require.NoError(t, err)

	batch := []*models.ScrapedProduct{
		scrapedFixture("https://www.boonthavorn.com/kitchen/sink-889900", "889900", "ซิงค์ล้างจาน", 4590),
		nil,
		scrapedFixture("https://www.megahome.co.th/p/778855", "778855", "ไม้อัดยาง", 419),
	}

	require.NoError(t, store.AddBatch(batch))
	assert.Equal(t, map[string]int{
		models.RetailerBoonthavorn: 1,
		models.RetailerMegaHome:    1,
	}, store.Counts())

	assert.Error(t, store.Add(nil))
}

func TestResultStoreFlushIsAtomic(t *testing.T) {
	dir := t.TempDir()

	store, err := NewResultStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Add(scrapedFixture("https://www.globalhouse.co.th/product/p-553311", "553311", "กระเบื้อง", 890)))
	require.NoError(t, store.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}
