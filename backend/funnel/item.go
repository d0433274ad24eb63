package funnel

import "time"

// UnknownLeadName is displayed when the lead of an item cannot be joined.
const UnknownLeadName = "Unknown"

// Item is one lead's position in the sales pipeline. LeadName and PropertyName are denormalized display values.
type Item struct {
	ID           string     `json:"id"`
	LeadID       string     `json:"leadId"`
	LeadName     string     `json:"leadName"`
	PropertyID   string     `json:"propertyId,omitempty"`
	PropertyName string     `json:"propertyName,omitempty"`
	Stage        Stage      `json:"stage"`
	Value        *float64   `json:"value,omitempty"`
	DaysInStage  int        `json:"daysInStage"`
	LastContact  *time.Time `json:"lastContact,omitempty"`
}

func (item Item) clone() Item {
	if item.Value != nil {
		v := *item.Value
		item.Value = &v
	}
	if item.LastContact != nil {
		t := *item.LastContact
		item.LastContact = &t
	}
	return item
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	c := make([]Item, len(items))
	for i := range items {
		c[i] = items[i].clone()
	}
	return c
}

func findItem(items []Item, id string) (int, bool) {
	for i := range items {
		if items[i].ID == id {
			return i, true
		}
	}
	return -1, false
}
