// Package checklist holds the static BS 7671 schedule of inspections: an ordered
// catalogue of sections, each with its ordered checklist items.
// A Catalogue is read-only once built.
package checklist

import (
	"strings"

	"github.com/pkg/errors"
)

type (
	// ItemDefinition is one checklist item of the schedule of inspections.
	ItemDefinition struct {
		ID          string `yaml:"id" json:"id"`
		SectionID   string `yaml:"section,omitempty" json:"section"`
		Number      string `yaml:"number" json:"number"`
		Item        string `yaml:"item" json:"item"`
		Clause      string `yaml:"clause" json:"clause"`
		Description string `yaml:"description,omitempty" json:"description,omitempty"`
	}

	Section struct {
		ID          string           `yaml:"id" json:"id"`
		Number      string           `yaml:"number" json:"number"`
		Title       string           `yaml:"title" json:"title"`
		Description string           `yaml:"description,omitempty" json:"description,omitempty"`
		Items       []ItemDefinition `yaml:"items" json:"items"`
	}

	// Document is the serialised form of a Catalogue.
	Document struct {
		Version  string    `yaml:"version" json:"version"`
		Sections []Section `yaml:"sections" json:"sections"`
	}

	Catalogue struct {
		doc      Document
		sections map[string]int    // {sectionID: index}
		items    map[string][2]int // {itemID: [section index, item index]}
		total    int
	}
)

// New validates the document and builds its Catalogue.
// Items without a section id get their parent section's id.
func New(doc Document) (*Catalogue, error) {
	cat := &Catalogue{
		doc:      Document{Version: strings.TrimSpace(doc.Version)},
		sections: make(map[string]int, len(doc.Sections)),
		items:    make(map[string][2]int),
	}
	if cat.doc.Version == "" {
		return nil, errors.New("catalogue version is required")
	}

	for si, sec := range doc.Sections {
		sec.ID = strings.TrimSpace(sec.ID)
		if sec.ID == "" {
			return nil, errors.Errorf("section #%d: id is required", si+1)
		}
		if _, dup := cat.sections[sec.ID]; dup {
			return nil, errors.Errorf("section %q: duplicate id", sec.ID)
		}
		items := make([]ItemDefinition, 0, len(sec.Items))
		for ii, item := range sec.Items {
			item.ID = strings.TrimSpace(item.ID)
			if item.ID == "" {
				return nil, errors.Errorf("section %q, item #%d: id is required", sec.ID, ii+1)
			}
			if _, dup := cat.items[item.ID]; dup {
				return nil, errors.Errorf("item %q: duplicate id", item.ID)
			}
			if item.SectionID == "" {
				item.SectionID = sec.ID
			} else if item.SectionID != sec.ID {
				return nil, errors.Errorf("item %q: belongs to section %q, listed under %q", item.ID, item.SectionID, sec.ID)
			}
			cat.items[item.ID] = [2]int{si, ii}
			items = append(items, item)
		}
		sec.Items = items
		cat.sections[sec.ID] = si
		cat.doc.Sections = append(cat.doc.Sections, sec)
		cat.total += len(items)
	}
	return cat, nil
}

func (cat *Catalogue) Version() string { return cat.doc.Version }

// Document returns a copy of the catalogue's serialisable form.
func (cat *Catalogue) Document() Document {
	return Document{Version: cat.doc.Version, Sections: cat.Sections()}
}

// Sections returns the sections in catalogue order.
func (cat *Catalogue) Sections() []Section {
	sections := make([]Section, 0, len(cat.doc.Sections))
	for _, sec := range cat.doc.Sections {
		sec.Items = append([]ItemDefinition(nil), sec.Items...)
		sections = append(sections, sec)
	}
	return sections
}

func (cat *Catalogue) Section(id string) (Section, bool) {
	idx, ok := cat.sections[id]
	if !ok {
		return Section{}, false
	}
	sec := cat.doc.Sections[idx]
	sec.Items = append([]ItemDefinition(nil), sec.Items...)
	return sec, true
}

func (cat *Catalogue) Item(id string) (ItemDefinition, bool) {
	pos, ok := cat.items[id]
	if !ok {
		return ItemDefinition{}, false
	}
	return cat.doc.Sections[pos[0]].Items[pos[1]], true
}

// TotalItems is the sum of item counts across all sections.
func (cat *Catalogue) TotalItems() int { return cat.total }

// ItemIDs returns the ids of the section's items, in order. nil if the section does not exist.
func (cat *Catalogue) ItemIDs(sectionID string) []string {
	idx, ok := cat.sections[sectionID]
	if !ok {
		return nil
	}
	items := cat.doc.Sections[idx].Items
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Items returns every item definition in catalogue order.
func (cat *Catalogue) Items() []ItemDefinition {
	items := make([]ItemDefinition, 0, cat.total)
	for _, sec := range cat.doc.Sections {
		items = append(items, sec.Items...)
	}
	return items
}
