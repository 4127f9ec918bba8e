package extension

import (
	"fmt"

	"github.com/beevik/etree"
)

// ElementName is the tag used by WriteElement and ReadElement
const ElementName = "Extension"

// contentTag holds the payload of an item as escaped text
const contentTag = "ExtensionContent"

var itemFields = []struct {
	tag string
	get func(*Item) *string
}{
	{"ExtensionID", func(i *Item) *string { return &i.ID }},
	{"ExtensionName", func(i *Item) *string { return &i.Name }},
	{"ExtensionAgencyID", func(i *Item) *string { return &i.AgencyID }},
	{"ExtensionAgencyName", func(i *Item) *string { return &i.AgencyName }},
	{"ExtensionAgencyURI", func(i *Item) *string { return &i.AgencyURI }},
	{"ExtensionVersionID", func(i *Item) *string { return &i.VersionID }},
	{"ExtensionURI", func(i *Item) *string { return &i.URI }},
	{"ExtensionReasonCode", func(i *Item) *string { return &i.ReasonCode }},
	{"ExtensionReason", func(i *Item) *string { return &i.Reason }},
	{contentTag, func(i *Item) *string { return &i.Any }},
}

// WriteElement appends one <Extension> child per item to parent.
func (e Extension) WriteElement(parent *etree.Element) error {
	for i := range e.items {
		item := e.items[i]
		if item.Any != "" {
			if _, err := canonicalElement(item.Any); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		el := parent.CreateElement(ElementName)
		for _, f := range itemFields {
			if v := *f.get(&item); v != "" {
				el.CreateElement(f.tag).SetText(v)
			}
		}
	}
	return nil
}

// ReadElement reads all <Extension> children of parent.
func ReadElement(parent *etree.Element) (Extension, error) {
	var items []Item
	for i, el := range parent.SelectElements(ElementName) {
		var item Item
		for _, f := range itemFields {
			if c := el.SelectElement(f.tag); c != nil {
				*f.get(&item) = c.Text()
			}
		}
		if item.Any != "" {
			elem, err := canonicalElement(item.Any)
			if err != nil {
				return Extension{}, fmt.Errorf("item %d: %w", i, err)
			}
			item.Any = elem
		}
		items = append(items, item)
	}
	return New(items...), nil
}
