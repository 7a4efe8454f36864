package models

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// FieldType describes how a specification field is captured.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldSelect   FieldType = "select"
	FieldTextarea FieldType = "textarea"
)

// FieldDefinition is an allowed specification field for a category.
type FieldDefinition struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Type    FieldType `json:"type"`
	Options []string  `json:"options,omitempty"`
}

// Category bundles a category name with its specification fields.
type Category struct {
	Name   string            `json:"name"`
	Fields []FieldDefinition `json:"fields"`
}

const optionOther = "Other"

var categoryFields = map[string][]FieldDefinition{
	"Laptop": {
		{Name: "model", Label: "Model", Type: FieldText},
		{Name: "ram", Label: "RAM", Type: FieldSelect, Options: []string{"4GB", "8GB", "12GB", "16GB", "24GB", "32GB", "64GB", "128GB"}},
		{Name: "storage", Label: "Storage", Type: FieldSelect, Options: []string{"256GB SSD", "512GB SSD", "1TB SSD", "2TB SSD", "4TB SSD", "500GB HDD", "1TB HDD"}},
		{Name: "serialNumber", Label: "Serial Number", Type: FieldText},
		{Name: "company", Label: "Company/Brand", Type: FieldSelect, Options: []string{"Dell", "HP", "Lenovo", "Apple", "Asus", "Acer", "Microsoft", "Samsung", "Toshiba", "MSI", "Huawei", optionOther}},
	},
	"Desktop": {
		{Name: "model", Label: "Model", Type: FieldText},
		{Name: "processor", Label: "Processor", Type: FieldText},
		{Name: "ram", Label: "RAM", Type: FieldSelect, Options: []string{"8GB", "16GB", "32GB", "64GB", "128GB"}},
		{Name: "gpu", Label: "GPU", Type: FieldText},
		{Name: "company", Label: "Company/Brand", Type: FieldSelect, Options: []string{"Dell", "HP", "Lenovo", "Custom Built", "Apple", "Acer", "ASUS", optionOther}},
	},
	"Accessories": {
		{Name: "type", Label: "Type", Type: FieldText},
		{Name: "model", Label: "Model", Type: FieldText},
		{Name: "company", Label: "Company/Brand", Type: FieldSelect, Options: []string{"Logitech", "Razer", "Apple", "Samsung", "Dell", "LG", "Sony", "Anker", "Belkin", "UGREEN", optionOther}},
		{Name: "connectionType", Label: "Connection Type", Type: FieldSelect, Options: []string{"Wired", "Wireless", "Bluetooth", "USB-C", "Lighting", optionOther}},
	},
	"Furniture": {
		{Name: "type", Label: "Type", Type: FieldSelect, Options: []string{"Chair", "Desk", "Table", "Cabinet", optionOther}},
		{Name: "color", Label: "Color", Type: FieldText},
		{Name: "dimensions", Label: "Dimensions", Type: FieldText},
		{Name: "brand", Label: "Brand", Type: FieldText},
	},
	"Other": {
		{Name: "specifications", Label: "Specifications", Type: FieldTextarea},
	},
}

var categoryOrder = []string{"Laptop", "Desktop", "Accessories", "Furniture", "Other"}

// Categories returns the catalog metadata in display order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryOrder))
	for _, name := range categoryOrder {
		fields := make([]FieldDefinition, len(categoryFields[name]))
		copy(fields, categoryFields[name])
		out = append(out, Category{Name: name, Fields: fields})
	}
	return out
}

// IsValidCategory reports whether the category exists in the catalog.
func IsValidCategory(name string) bool {
	_, ok := categoryFields[name]
	return ok
}

// ValidateSpecifications checks every key against the category's fields and every
// select value against its options. All problems are returned together.
func ValidateSpecifications(category string, specs map[string]string) error {
	fields, ok := categoryFields[category]
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}
	byName := make(map[string]FieldDefinition, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs error
	for _, key := range keys {
		value := specs[key]
		switch key {
		case SpecCondition:
			if !ItemCondition(value).Valid() {
				errs = multierr.Append(errs, fmt.Errorf("condition must be Good or Damaged"))
			}
			continue
		case SpecReturnedAt:
			continue
		}
		field, ok := byName[key]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("field %q is not allowed for category %s", key, category))
			continue
		}
		if field.Type == FieldSelect && value != "" && !contains(field.Options, value) {
			errs = multierr.Append(errs, fmt.Errorf("field %q must be one of %s", key, strings.Join(field.Options, ", ")))
		}
	}
	return errs
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
