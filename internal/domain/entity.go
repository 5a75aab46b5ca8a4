package domain

// EntityType names the kinds of entities derived from a tender.
type EntityType string

const (
	EntityTenderCase   EntityType = "TenderCase"
	EntityOrganization EntityType = "Organization"
	EntityAmount       EntityType = "Amount"
	EntityDate         EntityType = "Date"
)

// Entity is a typed fact about a tender, summarized into an episode when enabled.
type Entity struct {
	Type       EntityType             `json:"type"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}
