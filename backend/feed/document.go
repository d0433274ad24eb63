package feed

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/imoveplus/crm/backend/data"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	StatusAvailable = "Available"
	TransactionSale = "Sale"
	Currency        = "BRL"
	Country         = "Brasil"
)

// TimeFormat is ISO-8601 in UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CDATA is character data written as a CDATA section so markup in free text cannot break the document.
type CDATA struct {
	Text string `xml:",cdata"`
}

// newCDATA replaces runes outside the XML Char production with U+FFFD, as encoding/xml does for escaped text.
// encoding/xml writes CDATA sections verbatim.
func newCDATA(s string) CDATA {
	return CDATA{Text: strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return '\uFFFD'
	}, s)}
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

type Document struct {
	XMLName     xml.Name     `xml:"feedroot"`
	GeneratedAt string       `xml:"generated_at"`
	UserID      string       `xml:"user_id"`
	Properties  PropertyList `xml:"properties"`
	Leads       LeadList     `xml:"leads"`
}

type PropertyList struct {
	Properties []Property `xml:"property"`
}

type LeadList struct {
	Leads []Lead `xml:"lead"`
}

type Property struct {
	ID              string    `xml:"id"`
	Title           CDATA     `xml:"title"`
	Description     CDATA     `xml:"description"`
	Price           string    `xml:"price"`
	Currency        string    `xml:"currency"`
	Type            string    `xml:"type"`
	Status          string    `xml:"status"`
	TransactionType string    `xml:"transaction_type"`
	Area            string    `xml:"area"`
	Bedrooms        string    `xml:"bedrooms"`
	Bathrooms       string    `xml:"bathrooms"`
	Garage          string    `xml:"garage"`
	Address         Address   `xml:"address"`
	Images          ImageList `xml:"images"`
	URL             string    `xml:"url"`
	CreatedAt       string    `xml:"created_at"`
	UpdatedAt       string    `xml:"updated_at"`
}

type Address struct {
	Street       string `xml:"street"`
	Number       string `xml:"number"`
	Neighborhood string `xml:"neighborhood"`
	City         string `xml:"city"`
	State        string `xml:"state"`
	Zipcode      string `xml:"zipcode"`
	Country      string `xml:"country"`
}

type ImageList struct {
	Images []string `xml:"image"`
}

type Lead struct {
	ID               string `xml:"id"`
	Name             CDATA  `xml:"name"`
	Phone            string `xml:"phone"`
	Email            string `xml:"email"`
	Status           string `xml:"status"`
	PropertyInterest string `xml:"property_interest"`
	CreatedAt        string `xml:"created_at"`
}

// Encode returns the document with an XML declaration.
func (doc *Document) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteString(xml.Header)

	encoder := xml.NewEncoder(buf)
	encoder.Indent("", "    ")
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func formatTime(t pgtype.Timestamptz, now time.Time) string {
	if !t.Valid {
		return now.UTC().Format(TimeFormat)
	}
	return t.Time.UTC().Format(TimeFormat)
}

func formatFloat(f pgtype.Float8) string {
	if !f.Valid {
		return "0"
	}
	return strconv.FormatFloat(f.Float64, 'f', -1, 64)
}

func formatInt(n pgtype.Int4) string {
	if !n.Valid {
		return "0"
	}
	return strconv.FormatInt(int64(n.Int32), 10)
}

func textOr(t pgtype.Text, fallback string) string {
	if !t.Valid || t.String == "" {
		return fallback
	}
	return t.String
}

// NewProperty converts a listing row to its feed element. baseURL is the public site root used to build the
// listing URL.
func NewProperty(p *data.Property, baseURL string, now time.Time) Property {
	id := strconv.FormatInt(p.ID, 10)
	return Property{
		ID:              id,
		Title:           newCDATA(p.Title.String),
		Description:     newCDATA(p.Description.String),
		Price:           formatFloat(p.Price),
		Currency:        Currency,
		Type:            p.PropertyType.String,
		Status:          textOr(p.Status, StatusAvailable),
		TransactionType: textOr(p.TransactionType, TransactionSale),
		Area:            formatFloat(p.TotalArea),
		Bedrooms:        formatInt(p.Bedrooms),
		Bathrooms:       formatInt(p.Bathrooms),
		Garage:          formatInt(p.Garage),
		Address: Address{
			Street:       p.Street.String,
			Number:       p.Number.String,
			Neighborhood: p.Neighborhood.String,
			City:         p.City.String,
			State:        p.State.String,
			Zipcode:      p.Zipcode.String,
			Country:      Country,
		},
		Images:    ImageList{Images: p.Photos},
		URL:       baseURL + "/imoveis/" + id,
		CreatedAt: formatTime(p.CreatedAt, now),
		UpdatedAt: formatTime(p.UpdatedAt, now),
	}
}

func NewLead(l *data.Lead, now time.Time) Lead {
	lead := Lead{
		ID:        l.ID,
		Name:      newCDATA(l.Name.String),
		Phone:     l.Phone.String,
		Email:     l.Email.String,
		Status:    l.Status.String,
		CreatedAt: formatTime(l.CreatedAt, now),
	}
	if l.PropertyID.Valid {
		lead.PropertyInterest = strconv.FormatInt(l.PropertyID.Int64, 10)
	}
	return lead
}
