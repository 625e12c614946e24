// Package importer turns a tabular product file into products and variants.
package importer

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/events"
	"catalog-service/internal/media"
	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MaxParallelVariants bounds concurrent variant inserts for one product.
const MaxParallelVariants = 8

// maxPrice is 2^63, the first float64 outside the bigint price column.
const maxPrice = float64(math.MaxInt64)

// AttributeResolver resolves the attribute columns of a row.
type AttributeResolver interface {
	GetOrCreateMany(ctx context.Context, keys []string, row models.RawRow, group []models.RawRow) ([]models.Attribute, error)
}

// MediaResolver caches remote images and opens uploaded documents.
type MediaResolver interface {
	Resolve(ctx context.Context, rawURL string, t media.MediaType) (string, error)
	PublicURL(localPath string) (string, error)
	Open(name string, t media.MediaType) (io.ReadCloser, error)
}

type CategoryLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// ProductStore persists imported records. GetProduct returns the product with
// its params and variants loaded.
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	CreateVariant(ctx context.Context, variant *models.ProductVariant) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type EventPublisher interface {
	PublishProductImported(ctx context.Context, product *models.Product, importID string) error
	PublishImportCompleted(ctx context.Context, summary *events.ImportCompletedEvent) error
}

// FileRef names an uploaded document in the documents directory.
type FileRef struct {
	Name string
}

type Pipeline struct {
	attributes AttributeResolver
	media      MediaResolver
	categories CategoryLookup
	products   ProductStore
	events     EventPublisher
	logger     *logrus.Entry
}

func NewPipeline(
	attributes AttributeResolver,
	mediaResolver MediaResolver,
	categories CategoryLookup,
	products ProductStore,
	publisher EventPublisher,
	logger *logrus.Entry,
) *Pipeline {
	return &Pipeline{
		attributes: attributes,
		media:      mediaResolver,
		categories: categories,
		products:   products,
		events:     publisher,
		logger:     logger.WithField("component", "import_pipeline"),
	}
}

// ImportFromFile creates one product per distinct name in the file, each with
// one variant per row, and returns them fully loaded in file order.
//
// The file is parsed and checked against the template before anything is
// written. Groups are imported one after another; a failure stops the import
// but products of earlier groups stay committed. Cancellation is honored
// between groups only: a group that has started runs to completion on a
// context detached from ctx's cancellation, so it never ends half-written.
func (p *Pipeline) ImportFromFile(ctx context.Context, ref FileRef, categoryID uuid.UUID, tmpl models.ImportTemplate) ([]models.Product, error) {
	start := time.Now()
	importID := uuid.New().String()
	log := p.logger.WithFields(logrus.Fields{
		"import_id":   importID,
		"file":        ref.Name,
		"category_id": categoryID,
	})

	if err := validateTemplate(tmpl); err != nil {
		return nil, err
	}

	if _, err := p.categories.GetByID(ctx, categoryID); err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.Validation("CATEGORY_NOT_FOUND", "category %s not found", categoryID)
		}
		return nil, err
	}

	table, err := p.load(ref)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, apperrors.Validation("EMPTY_FILE", "Invalid or empty file")
	}
	if err := checkColumns(table, tmpl); err != nil {
		return nil, err
	}

	groups, err := GroupBy(table.Rows, KeyByColumn(tmpl.Info.NameKey))
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"rows":     len(table.Rows),
		"products": groups.Len(),
	}).Info("Starting product import")

	result := make([]models.Product, 0, groups.Len())
	variantCount := 0
	for _, name := range groups.Keys() {
		if err := ctx.Err(); err != nil {
			log.WithField("imported", len(result)).Warn("Import cancelled between groups")
			return nil, err
		}

		groupCtx := context.WithoutCancel(ctx)
		product, err := p.importGroup(groupCtx, name, groups.Rows(name), categoryID, tmpl)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"product":  name,
				"imported": len(result),
			}).Error("Import stopped")
			return nil, err
		}
		result = append(result, *product)
		variantCount += len(product.Variants)

		if err := p.events.PublishProductImported(groupCtx, product, importID); err != nil {
			log.WithError(err).Warn("Failed to publish product.imported")
		}
	}

	summary := &events.ImportCompletedEvent{
		ImportID:     importID,
		CategoryID:   categoryID.String(),
		FileName:     ref.Name,
		RowCount:     len(table.Rows),
		ProductCount: len(result),
		VariantCount: variantCount,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	if err := p.events.PublishImportCompleted(context.WithoutCancel(ctx), summary); err != nil {
		log.WithError(err).Warn("Failed to publish import.completed")
	}

	log.WithFields(logrus.Fields{
		"products":    summary.ProductCount,
		"variants":    summary.VariantCount,
		"duration_ms": summary.DurationMs,
	}).Info("Product import completed")
	return result, nil
}

func (p *Pipeline) load(ref FileRef) (*Table, error) {
	format, err := FormatOf(ref.Name)
	if err != nil {
		return nil, err
	}
	file, err := p.media.Open(ref.Name, media.MediaTypeDocument)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.Validation("FILE_NOT_FOUND", "import file %s not found", ref.Name)
		}
		return nil, err
	}
	defer file.Close()

	return Parse(file, format)
}

type variantDraft struct {
	imageURL      string
	price         *int
	discountPrice *int
	attributes    []models.Attribute
}

func (p *Pipeline) importGroup(ctx context.Context, name string, rows []models.RawRow, categoryID uuid.UUID, tmpl models.ImportTemplate) (*models.Product, error) {
	first := rows[0]

	params, err := p.attributes.GetOrCreateMany(ctx, tmpl.ParamKeys, first, rows)
	if err != nil {
		return nil, err
	}
	imageURL, err := p.resolveImage(ctx, first[tmpl.Info.ImagePathKey])
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Slug:       slug.Make(name),
		Name:       name,
		ImageURL:   imageURL,
		IsVisible:  true,
		CategoryID: categoryID,
		Params:     params,
	}
	if err := p.products.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	// Rows are resolved in file order; the inserts below run unordered.
	drafts := make([]variantDraft, 0, len(rows))
	for _, row := range rows {
		attrs, err := p.attributes.GetOrCreateMany(ctx, tmpl.AttributeKeys, row, rows)
		if err != nil {
			return nil, err
		}
		img, err := p.resolveImage(ctx, row[tmpl.Info.ImagePathKey])
		if err != nil {
			return nil, err
		}
		price, err := parsePrice(row, tmpl.Info.PriceKey)
		if err != nil {
			return nil, err
		}
		discount, err := parsePrice(row, tmpl.Info.DiscountPriceKey)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, variantDraft{imageURL: img, price: price, discountPrice: discount, attributes: attrs})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelVariants)
	for _, d := range drafts {
		g.Go(func() error {
			return p.products.CreateVariant(gctx, &models.ProductVariant{
				ProductID:     product.ID,
				ImageURL:      d.imageURL,
				Price:         d.price,
				DiscountPrice: d.discountPrice,
				Attributes:    d.attributes,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.products.GetProduct(ctx, product.ID)
}

// resolveImage downloads the image behind rawURL and returns its public URL.
// An empty cell leaves the image unset.
func (p *Pipeline) resolveImage(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", nil
	}
	localPath, err := p.media.Resolve(ctx, rawURL, media.MediaTypeImage)
	if err != nil {
		return "", err
	}
	return p.media.PublicURL(localPath)
}

func validateTemplate(tmpl models.ImportTemplate) error {
	if tmpl.Info.NameKey == "" {
		return apperrors.Validation("INVALID_TEMPLATE", "template must name the product name column")
	}
	if tmpl.Info.ImagePathKey == "" {
		return apperrors.Validation("INVALID_TEMPLATE", "template must name the image column")
	}
	return nil
}

// checkColumns rejects a file whose header lacks a column the template reads,
// and any price that is not a number.
func checkColumns(table *Table, tmpl models.ImportTemplate) error {
	present := make(map[string]bool, len(table.Header))
	for _, col := range table.Header {
		present[col] = true
	}
	var missing []string
	for _, col := range tmpl.Columns() {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return apperrors.Validation("MISSING_COLUMN", "file is missing columns required by the template: %s", strings.Join(missing, ", "))
	}

	for i, row := range table.Rows {
		for _, key := range []string{tmpl.Info.PriceKey, tmpl.Info.DiscountPriceKey} {
			if _, err := parsePrice(row, key); err != nil {
				return apperrors.Validation("INVALID_PRICE", "row %d: %v", i+2, err)
			}
		}
	}
	return nil
}

// parsePrice reads an optional whole amount. Empty means unset; a decimal is
// truncated. Negative, non-finite and out of range values are rejected.
func parsePrice(row models.RawRow, key string) (*int, error) {
	if key == "" {
		return nil, nil
	}
	value := strings.TrimSpace(row[key])
	if value == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 {
			return nil, apperrors.Validation("INVALID_PRICE", "column %q: %q is negative", key, value)
		}
		return &n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, apperrors.Validation("INVALID_PRICE", "column %q: %q is not a number", key, value)
	}
	if f < 0 {
		return nil, apperrors.Validation("INVALID_PRICE", "column %q: %q is negative", key, value)
	}
	if f >= maxPrice {
		return nil, apperrors.Validation("INVALID_PRICE", "column %q: %q is too large", key, value)
	}
	n := int(f)
	return &n, nil
}
