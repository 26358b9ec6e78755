package services

import (
	"fmt"
	"sort"

	"github.com/nexuscrm/formengine/pkg/constants"
)

// SectionSpec is a named section in an entity type's priority list
type SectionSpec struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// LineItemSpec configures the multi-line item sub-form for an entity type
type LineItemSpec struct {
	Key        string
	Label      string
	LookupType string
	Mandatory  bool
}

// CompositeRule is an expr-lang condition that, when true, records Message under Key
type CompositeRule struct {
	Key       string
	Condition string
	Message   string
}

// EntityDefinition is everything the engine knows about one entity type apart from its field registry
type EntityDefinition struct {
	Name         string
	Label        string
	Sections     []SectionSpec
	Dependencies DependencyTable
	LineItems    *LineItemSpec
	Rules        []CompositeRule
	// SystemFields are registry rows that are never rendered or collected (e.g. auto-numbered ids)
	SystemFields []string
}

// SectionRank returns the priority index of a section, or -1 when unlisted
func (d *EntityDefinition) SectionRank(section string) int {
	for i, s := range d.Sections {
		if s.Name == section {
			return i
		}
	}
	return -1
}

// SectionLabel returns the configured label, falling back to the raw name
func (d *EntityDefinition) SectionLabel(section string) string {
	for _, s := range d.Sections {
		if s.Name == section {
			return s.Label
		}
	}
	return section
}

// IsSystemField reports whether name is excluded from rendering
func (d *EntityDefinition) IsSystemField(name string) bool {
	for _, f := range d.SystemFields {
		if f == name {
			return true
		}
	}
	return false
}

// HasLineItems reports whether the entity carries a product sub-form
func (d *EntityDefinition) HasLineItems() bool {
	return d.LineItems != nil
}

// EntityCatalog resolves entity definitions by name
type EntityCatalog struct {
	entities map[string]*EntityDefinition
}

// NewEntityCatalog validates and indexes the given definitions
func NewEntityCatalog(defs ...*EntityDefinition) (*EntityCatalog, error) {
	c := &EntityCatalog{entities: make(map[string]*EntityDefinition, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("entity definition without a name")
		}
		if _, dup := c.entities[d.Name]; dup {
			return nil, fmt.Errorf("entity %q defined twice", d.Name)
		}
		if err := d.Dependencies.Validate(); err != nil {
			return nil, fmt.Errorf("entity %q: %w", d.Name, err)
		}
		c.entities[d.Name] = d
	}
	return c, nil
}

// DefaultEntityCatalog returns the built-in CRM entity types
func DefaultEntityCatalog() *EntityCatalog {
	c, err := NewEntityCatalog(
		leadDefinition(),
		dealDefinition(),
		contactDefinition(),
		accountDefinition(),
		productDefinition(),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the definition for an entity type
func (c *EntityCatalog) Get(entityType string) (*EntityDefinition, bool) {
	d, ok := c.entities[entityType]
	return d, ok
}

// Names returns every entity type name, sorted
func (c *EntityCatalog) Names() []string {
	names := make([]string, 0, len(c.entities))
	for n := range c.entities {
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	sort.Strings(s)
}

// Selector tables shared by several entity types

func accountSelector(field string) DependencySpec {
	return DependencySpec{
		Field:      field,
		LookupType: constants.LookupAccounts,
		DisplayOf:  DisplayChain("Account", Attr(constants.AttrAccountName), Attr(constants.AttrName)),
	}
}

func contactSelector(dependsOn string) DependencySpec {
	return DependencySpec{
		Field:      constants.FieldContact,
		LookupType: constants.LookupContacts,
		DependsOn:  dependsOn,
		ScopeKey:   constants.AttrAccountID,
		DisplayOf: DisplayChain("Contact",
			Attr(constants.AttrContactName),
			Attr(constants.AttrFullName),
			Joined(constants.AttrFirstName, constants.AttrLastName),
		),
		AutoPopulate: []PopulateRule{
			{Target: constants.FieldFirstName, Sources: []string{constants.AttrFirstName}},
			{Target: constants.FieldLastName, Sources: []string{constants.AttrLastName}},
			{Target: constants.FieldPhoneNumber, Sources: []string{constants.AttrPhoneMobile, constants.AttrPhoneNumber, constants.AttrPhone, constants.AttrPhoneWork}},
			{Target: constants.FieldEmailAddress, Sources: []string{constants.AttrEmailPrimary, constants.AttrEmail, constants.AttrEmailAddress}},
			{Target: constants.FieldDepartment, Sources: []string{constants.AttrDepartment}},
		},
	}
}

func assigneeSelector() DependencySpec {
	return DependencySpec{
		Field:      constants.FieldAssignedTo,
		LookupType: constants.LookupUsers,
		DisplayOf: DisplayChain("User",
			Attr(constants.AttrFullName),
			Joined(constants.AttrFirstName, constants.AttrLastName),
			Attr(constants.AttrName),
			Attr(constants.AttrEmail),
		),
	}
}

func productLineItems(mandatory bool) *LineItemSpec {
	return &LineItemSpec{
		Key:        constants.PseudoFieldProducts,
		Label:      "Products",
		LookupType: constants.LookupProducts,
		Mandatory:  mandatory,
	}
}

func leadDefinition() *EntityDefinition {
	return &EntityDefinition{
		Name:  constants.EntityLead,
		Label: "Lead",
		Sections: []SectionSpec{
			{Name: constants.SectionBasicInfo, Label: "Basic Information"},
			{Name: constants.SectionLeadDetails, Label: "Lead Details"},
			{Name: constants.SectionContactInfo, Label: "Contact Information"},
			{Name: constants.SectionAdditionalInfo, Label: "Additional Information"},
		},
		Dependencies: DependencyTable{
			constants.FieldAccount:    accountSelector(constants.FieldAccount),
			constants.FieldContact:    contactSelector(constants.FieldAccount),
			constants.FieldAssignedTo: assigneeSelector(),
		},
		LineItems:    productLineItems(true),
		SystemFields: []string{"lead_id"},
	}
}

func dealDefinition() *EntityDefinition {
	return &EntityDefinition{
		Name:  constants.EntityDeal,
		Label: "Deal",
		Sections: []SectionSpec{
			{Name: constants.SectionBasicInfo, Label: "Basic Information"},
			{Name: constants.SectionDealDetails, Label: "Deal Details"},
			{Name: constants.SectionContactInfo, Label: "Contact Information"},
			{Name: constants.SectionAdditionalInfo, Label: "Additional Information"},
		},
		Dependencies: DependencyTable{
			constants.FieldAccount:    accountSelector(constants.FieldAccount),
			constants.FieldContact:    contactSelector(constants.FieldAccount),
			constants.FieldAssignedTo: assigneeSelector(),
		},
		LineItems:    productLineItems(true),
		SystemFields: []string{"deal_id"},
	}
}

func contactDefinition() *EntityDefinition {
	return &EntityDefinition{
		Name:  constants.EntityContact,
		Label: "Contact",
		Sections: []SectionSpec{
			{Name: constants.SectionBasicInfo, Label: "Basic Information"},
			{Name: constants.SectionContact, Label: "Contact Details"},
			{Name: constants.SectionProfessional, Label: "Professional"},
			{Name: constants.SectionAddress, Label: "Address"},
			{Name: constants.SectionSocial, Label: "Social"},
		},
		Dependencies: DependencyTable{
			constants.FieldCompanyName: accountSelector(constants.FieldCompanyName),
			constants.FieldAssignedTo:  assigneeSelector(),
		},
	}
}

func accountDefinition() *EntityDefinition {
	return &EntityDefinition{
		Name:  constants.EntityAccount,
		Label: "Account",
		Sections: []SectionSpec{
			{Name: constants.SectionBasicInfo, Label: "Basic Information"},
			{Name: constants.SectionContact, Label: "Contact Details"},
			{Name: constants.SectionAddresses, Label: "Addresses"},
			{Name: constants.SectionBusinessDetails, Label: "Business Details"},
			{Name: constants.SectionFinancial, Label: "Financial"},
			{Name: constants.SectionAdvanced, Label: "Advanced"},
		},
		Dependencies: DependencyTable{
			constants.FieldAssignedTo: assigneeSelector(),
		},
	}
}

func productDefinition() *EntityDefinition {
	return &EntityDefinition{
		Name:  constants.EntityProduct,
		Label: "Product",
		Sections: []SectionSpec{
			{Name: constants.SectionBasicInfo, Label: "Basic Information"},
			{Name: constants.SectionPricing, Label: "Pricing"},
			{Name: constants.SectionInventory, Label: "Inventory"},
			{Name: constants.SectionTechnical, Label: "Technical"},
			{Name: constants.SectionMedia, Label: "Media"},
			{Name: constants.SectionDates, Label: "Dates"},
			{Name: constants.SectionAnalytics, Label: "Analytics"},
		},
		Dependencies: DependencyTable{},
		Rules: []CompositeRule{
			{
				Key:       constants.PseudoFieldPricing,
				Condition: "!BLANK(price) && !BLANK(cost_price) && NUM(price) < NUM(cost_price)",
				Message:   "Selling price must not be below cost price",
			},
		},
	}
}
