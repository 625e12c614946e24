package models

import "github.com/google/uuid"

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// RawRow is one parsed line of an import file keyed by header name.
type RawRow map[string]string

// ImportInfoKeys names the columns holding the scalar product fields.
type ImportInfoKeys struct {
	NameKey          string `json:"nameKey" binding:"required"`
	ImagePathKey     string `json:"imgPathKey" binding:"required"`
	PriceKey         string `json:"priceKey"`
	DiscountPriceKey string `json:"discountPriceKey"`
}

// ImportTemplate maps the columns of an import file to product roles.
// ParamKeys become product level attributes, AttributeKeys variant level ones.
type ImportTemplate struct {
	Info          ImportInfoKeys `json:"info" binding:"required"`
	ParamKeys     []string       `json:"paramKeys"`
	AttributeKeys []string       `json:"attributeKeys"`
}

// Columns returns every column the template reads, without duplicates.
func (t ImportTemplate) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(col string) {
		if col == "" || seen[col] {
			return
		}
		seen[col] = true
		cols = append(cols, col)
	}
	add(t.Info.NameKey)
	add(t.Info.ImagePathKey)
	add(t.Info.PriceKey)
	add(t.Info.DiscountPriceKey)
	for _, k := range t.ParamKeys {
		add(k)
	}
	for _, k := range t.AttributeKeys {
		add(k)
	}
	return cols
}

// ImportProductsRequest names a previously uploaded document and the template to read it with.
type ImportProductsRequest struct {
	CategoryID uuid.UUID      `json:"categoryId" binding:"required"`
	FileName   string         `json:"fileName" binding:"required"`
	Template   ImportTemplate `json:"template" binding:"required"`
}

// ImportTemplateColumn defines a column in the downloadable import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, url
	Example     string `json:"example"`
}

// ImportTemplateDocument describes the sample file offered for download
// together with the template that reads it.
type ImportTemplateDocument struct {
	Entity   string                 `json:"entity"`
	Version  string                 `json:"version"`
	Columns  []ImportTemplateColumn `json:"columns"`
	Template ImportTemplate         `json:"template"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Success      bool      `json:"success"`
	TotalRows    int       `json:"totalRows"`
	ProductCount int       `json:"productCount"`
	VariantCount int       `json:"variantCount"`
	Data         []Product `json:"data"`
	ProcessingMs int64     `json:"processingMs"`
}

// ProductImportColumns returns the column definitions of the sample import file
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "name", Description: "Product name; rows sharing a name become variants of one product", Required: true, Type: "string", Example: "Door1"},
		{Name: "imgPath", Description: "Remote image URL, downloaded once and cached", Required: true, Type: "url", Example: "https://cdn.example.com/door1-white.png"},
		{Name: "price", Description: "Variant price as a whole number", Required: false, Type: "number", Example: "12000"},
		{Name: "discountPrice", Description: "Discounted variant price as a whole number", Required: false, Type: "number", Example: ""},
		{Name: "material", Description: "Product param shared by all variants", Required: false, Type: "string", Example: "oak"},
		{Name: "color", Description: "Variant attribute", Required: false, Type: "string", Example: "white"},
		{Name: "size", Description: "Variant attribute", Required: false, Type: "string", Example: "80x200"},
	}
}

// ProductImportTemplate returns the sample document definition
func ProductImportTemplate() ImportTemplateDocument {
	return ImportTemplateDocument{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
		Template: ImportTemplate{
			Info: ImportInfoKeys{
				NameKey:          "name",
				ImagePathKey:     "imgPath",
				PriceKey:         "price",
				DiscountPriceKey: "discountPrice",
			},
			ParamKeys:     []string{"material"},
			AttributeKeys: []string{"color", "size"},
		},
	}
}
