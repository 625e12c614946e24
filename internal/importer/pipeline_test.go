package importer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/attributes"
	"catalog-service/internal/events"
	"catalog-service/internal/media"
	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// attributeStore is a minimal in-memory attributes.Store.
type attributeStore struct {
	mu    sync.Mutex
	pairs []models.Attribute
	keys  map[string]models.AttributeKey
	vals  map[string]models.AttributeValue
}

func newAttributeStore() *attributeStore {
	return &attributeStore{keys: map[string]models.AttributeKey{}, vals: map[string]models.AttributeValue{}}
}

func (s *attributeStore) KeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *attributeStore) ValuesByKey(ctx context.Context, key string) ([]models.AttributeValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AttributeValue
	for _, p := range s.pairs {
		if p.Key.Value == key {
			out = append(out, p.Value)
		}
	}
	return out, nil
}

func (s *attributeStore) FindPair(ctx context.Context, key, value string) (*models.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pairs {
		if p.Key.Value == key && p.Value.Value == value {
			found := p
			return &found, nil
		}
	}
	return nil, apperrors.NotFound("ATTRIBUTE_NOT_FOUND", "not found")
}

func (s *attributeStore) CreatePair(ctx context.Context, key models.AttributeKey, value models.AttributeValue) (*models.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[key.Value]; ok {
		key = k
	} else {
		key.ID = uuid.New()
		s.keys[key.Value] = key
	}
	if v, ok := s.vals[value.Value]; ok {
		value = v
	} else {
		value.ID = uuid.New()
		s.vals[value.Value] = value
	}
	attr := models.Attribute{ID: uuid.New(), KeyID: key.ID, ValueID: value.ID, Key: key, Value: value}
	s.pairs = append(s.pairs, attr)
	return &attr, nil
}

func (s *attributeStore) List(ctx context.Context) ([]models.Attribute, error) {
	return s.pairs, nil
}

func (s *attributeStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attribute, error) {
	return nil, nil
}

type productStore struct {
	mu       sync.Mutex
	products []models.Product
	variants []models.ProductVariant
}

func (s *productStore) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product.ID = uuid.New()
	s.products = append(s.products, *product)
	return nil
}

func (s *productStore) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	variant.ID = uuid.New()
	s.variants = append(s.variants, *variant)
	return nil
}

func (s *productStore) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID != id {
			continue
		}
		found := p
		for _, v := range s.variants {
			if v.ProductID == id {
				found.Variants = append(found.Variants, v)
			}
		}
		return &found, nil
	}
	return nil, apperrors.NotFound("PRODUCT_NOT_FOUND", "product %s not found", id)
}

type categoryLookup struct {
	known uuid.UUID
}

func (c categoryLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if id != c.known {
		return nil, apperrors.NotFound("CATEGORY_NOT_FOUND", "category %s not found", id)
	}
	return &models.Category{ID: id, Name: "Doors", Slug: "doors"}, nil
}

type recordingEvents struct {
	mu        sync.Mutex
	imported  []string
	completed []*events.ImportCompletedEvent
}

func (r *recordingEvents) PublishProductImported(ctx context.Context, product *models.Product, importID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imported = append(r.imported, product.Name)
	return nil
}

func (r *recordingEvents) PublishImportCompleted(ctx context.Context, summary *events.ImportCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, summary)
	return nil
}

// imageFetcher serves any URL except those containing "broken".
type imageFetcher struct {
	calls atomic.Int32
}

func (f *imageFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f.calls.Add(1)
	if strings.Contains(rawURL, "broken") {
		return nil, errors.New("connection reset by peer")
	}
	return io.NopCloser(strings.NewReader("image:" + rawURL)), nil
}

type fixture struct {
	pipeline   *Pipeline
	products   *productStore
	attrs      *attributeStore
	fetcher    *imageFetcher
	events     *recordingEvents
	docsDir    string
	categoryID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	f := &fixture{
		products:   &productStore{},
		attrs:      newAttributeStore(),
		fetcher:    &imageFetcher{},
		events:     &recordingEvents{},
		docsDir:    t.TempDir(),
		categoryID: uuid.New(),
	}
	cache := media.NewCache(media.Config{
		ImageDir:          t.TempDir(),
		DocumentDir:       f.docsDir,
		BaseURL:           "http://shop.local",
		PublicImagePrefix: "static/images",
	}, f.fetcher, entry)

	f.pipeline = NewPipeline(
		attributes.NewRegistry(f.attrs, entry),
		cache,
		categoryLookup{known: f.categoryID},
		f.products,
		f.events,
		entry,
	)
	return f
}

func (f *fixture) writeDoc(t *testing.T, name, content string) FileRef {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.docsDir, name), []byte(content), 0o644))
	return FileRef{Name: name}
}

func doorTemplate() models.ImportTemplate {
	return models.ImportTemplate{
		Info: models.ImportInfoKeys{
			NameKey:          "name",
			ImagePathKey:     "imgPath",
			PriceKey:         "price",
			DiscountPriceKey: "discountPrice",
		},
		ParamKeys:     []string{"material"},
		AttributeKeys: []string{"color", "glass"},
	}
}

const doorHeader = "name,imgPath,price,discountPrice,material,color,glass\n"

func TestImportFromFile_GroupsRowsIntoVariants(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", doorHeader+
		"Door1,https://cdn.example.com/door1-white.png,12000,,oak,white,\n"+
		"Door1,https://cdn.example.com/door1-black.png,13000,11000,oak,black,\n")

	products, err := f.pipeline.ImportFromFile(context.Background(), ref, f.categoryID, doorTemplate())

	require.NoError(t, err)
	require.Len(t, products, 1)
	door := products[0]
	assert.Equal(t, "Door1", door.Name)
	assert.Equal(t, "door1", door.Slug)
	assert.Equal(t, f.categoryID, door.CategoryID)
	assert.Equal(t, "http://shop.local/static/images/door1-white.png", door.ImageURL)
	require.Len(t, door.Params, 1)
	assert.Equal(t, "material", door.Params[0].Key.Value)
	assert.Equal(t, "oak", door.Params[0].Value.Value)

	require.Len(t, door.Variants, 2)
	byColor := map[string]models.ProductVariant{}
	for _, v := range door.Variants {
		// glass is empty in every row, so only color is attached.
		require.Len(t, v.Attributes, 1)
		byColor[v.Attributes[0].Value.Value] = v
	}
	white, black := byColor["white"], byColor["black"]
	require.NotNil(t, white.Price)
	assert.Equal(t, 12000, *white.Price)
	assert.Nil(t, white.DiscountPrice)
	require.NotNil(t, black.DiscountPrice)
	assert.Equal(t, 11000, *black.DiscountPrice)
	assert.Equal(t, "http://shop.local/static/images/door1-black.png", black.ImageURL)

	// door1-white.png is shared by the product and its first variant.
	assert.Equal(t, int32(2), f.fetcher.calls.Load())
	assert.Equal(t, []string{"Door1"}, f.events.imported)
	require.Len(t, f.events.completed, 1)
	assert.Equal(t, 2, f.events.completed[0].VariantCount)
}

func TestImportFromFile_PreservesGroupOrder(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", doorHeader+
		"Door2,https://cdn.example.com/d2.png,1,,pine,white,\n"+
		"Door1,https://cdn.example.com/d1.png,1,,oak,white,\n"+
		"Door2,https://cdn.example.com/d2b.png,1,,pine,black,\n")

	products, err := f.pipeline.ImportFromFile(context.Background(), ref, f.categoryID, doorTemplate())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Door2", products[0].Name)
	assert.Len(t, products[0].Variants, 2)
	assert.Equal(t, "Door1", products[1].Name)
	assert.Len(t, products[1].Variants, 1)
}

func TestImportFromFile_EmptyFile(t *testing.T) {
	f := newFixture(t)

	for name, content := range map[string]string{
		"empty.csv":       "",
		"header-only.csv": doorHeader,
	} {
		ref := f.writeDoc(t, name, content)
		_, err := f.pipeline.ImportFromFile(context.Background(), ref, f.categoryID, doorTemplate())

		assert.ErrorIs(t, err, apperrors.ErrValidation, name)
		assert.Equal(t, "EMPTY_FILE", apperrors.CodeOf(err), name)
	}
	assert.Empty(t, f.products.products)
	assert.Empty(t, f.attrs.pairs)
	assert.Equal(t, int32(0), f.fetcher.calls.Load())
}

func TestImportFromFile_MissingTemplateColumnFailsUpFront(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", "name,imgPath,price,discountPrice,material,color\n"+
		"Door1,https://cdn.example.com/d1.png,1,,oak,white\n")

	_, err := f.pipeline.ImportFromFile(context.Background(), ref, f.categoryID, doorTemplate())

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "MISSING_COLUMN", apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "glass")
	assert.Empty(t, f.products.products)
	assert.Empty(t, f.attrs.pairs)
}

func TestImportFromFile_InvalidPriceFailsUpFront(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", doorHeader+
		"Door1,https://cdn.example.com/d1.png,12.5,,oak,white,\n"+
		"Door2,https://cdn.example.com/d2.png,cheap,,oak,white,\n")

	_, err := f.pipeline.ImportFromFile(context.Background(), ref, f.categoryID, doorTemplate())

	assert.Equal(t, "INVALID_PRICE", apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "row 3")
	assert.Empty(t, f.products.products)
}

func TestImportFromFile_UnknownCategory(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", doorHeader+"Door1,https://cdn.example.com/d1.png,1,,oak,white,\n")

	_, err := f.pipeline.ImportFromFile(context.Background(), ref, uuid.New(), doorTemplate())

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "CATEGORY_NOT_FOUND", apperrors.CodeOf(err))
}

func TestImportFromFile_UnknownFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.ImportFromFile(context.Background(), FileRef{Name: "missing.csv"}, f.categoryID, doorTemplate())
	assert.Equal(t, "FILE_NOT_FOUND", apperrors.CodeOf(err))

	_, err = f.pipeline.ImportFromFile(context.Background(), FileRef{Name: "doors.pdf"}, f.categoryID, doorTemplate())
	assert.Equal(t, "INVALID_FORMAT", apperrors.CodeOf(err))
}

func TestImportFromFile_MediaFailureKeepsEarlierGroups(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", doorHeader+
		"Door1,https://cdn.example.com/d1.png,1,,oak,white,\n"+
		"Door2,https://cdn.example.com/broken.png,1,,oak,white,\n"+
		"Door3,https://cdn.example.com/d3.png,1,,oak,white,\n")

	products, err := f.pipeline.ImportFromFile(context.Background(), ref, f.categoryID, doorTemplate())

	assert.Nil(t, products)
	assert.ErrorIs(t, err, apperrors.ErrTransient)
	require.Len(t, f.products.products, 1)
	assert.Equal(t, "Door1", f.products.products[0].Name)
	assert.Empty(t, f.events.completed)
}

func TestImportFromFile_CancelledBeforeFirstGroup(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", doorHeader+"Door1,https://cdn.example.com/d1.png,1,,oak,white,\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.ImportFromFile(ctx, ref, f.categoryID, doorTemplate())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.products.products)
}

// cancellingStore cancels the import context once the named product is written.
type cancellingStore struct {
	*productStore
	after  string
	cancel context.CancelFunc
}

func (s *cancellingStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.productStore.CreateProduct(ctx, product); err != nil {
		return err
	}
	if product.Name == s.after {
		s.cancel()
	}
	return nil
}

func TestImportFromFile_CancelledDuringGroup(t *testing.T) {
	f := newFixture(t)
	ref := f.writeDoc(t, "doors.csv", doorHeader+
		"Door1,https://cdn.example.com/d1.png,100,,oak,white,\n"+
		"Door1,https://cdn.example.com/d1b.png,110,,oak,black,\n"+
		"Door2,https://cdn.example.com/d2.png,200,,pine,white,\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pipeline.products = &cancellingStore{productStore: f.products, after: "Door1", cancel: cancel}

	products, err := f.pipeline.ImportFromFile(ctx, ref, f.categoryID, doorTemplate())

	assert.Nil(t, products)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, f.products.products, 1)
	assert.Equal(t, "Door1", f.products.products[0].Name)
	assert.Len(t, f.products.variants, 2)
	assert.Equal(t, []string{"Door1"}, f.events.imported)
	assert.Empty(t, f.events.completed)
}

func TestImportFromFile_XLSX(t *testing.T) {
	f := newFixture(t)

	book := excelize.NewFile()
	book.SetSheetName("Sheet1", "Products")
	rows := [][]interface{}{
		{"name", "imgPath", "price", "discountPrice", "material", "color", "glass"},
		{"Door1", "https://cdn.example.com/d1.png", 100, "", "oak", "white"},
		{"Door1", "https://cdn.example.com/d1b.png", 110, 99, "oak", "black", "frosted"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, book.SetSheetRow("Products", cell, &row))
	}
	require.NoError(t, book.SaveAs(filepath.Join(f.docsDir, "doors.xlsx")))
	book.Close()

	products, err := f.pipeline.ImportFromFile(context.Background(), FileRef{Name: "doors.xlsx"}, f.categoryID, doorTemplate())

	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Len(t, products[0].Variants, 2)
	for _, v := range products[0].Variants {
		// glass has a value in one row, so both variants carry it.
		assert.Len(t, v.Attributes, 2)
	}
}
