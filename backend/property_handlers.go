package backend

import (
	"fmt"
	"net/http"
	"time"

	"github.com/imoveplus/crm/backend/data"
	"github.com/jackc/pgx/v5/pgtype"
)

type propertyJSON struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	Price           *float64   `json:"price"`
	PropertyType    *string    `json:"propertyType"`
	Status          string     `json:"status"`
	TransactionType string     `json:"transactionType"`
	TotalArea       *float64   `json:"totalArea"`
	Bedrooms        *int32     `json:"bedrooms"`
	Bathrooms       *int32     `json:"bathrooms"`
	Garage          *int32     `json:"garage"`
	Street          *string    `json:"street"`
	Number          *string    `json:"number"`
	Neighborhood    *string    `json:"neighborhood"`
	City            *string    `json:"city"`
	State           *string    `json:"state"`
	Zipcode         *string    `json:"zipcode"`
	Photos          []string   `json:"photos"`
	CreatedAt       *time.Time `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt"`
}

func floatPtr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

func int4Ptr(n pgtype.Int4) *int32 {
	if !n.Valid {
		return nil
	}
	return &n.Int32
}

func newPropertyJSON(p *data.Property) propertyJSON {
	photos := p.Photos
	if photos == nil {
		photos = []string{}
	}
	return propertyJSON{
		ID:              p.ID,
		Title:           p.Title.String,
		Description:     textPtr(p.Description),
		Price:           floatPtr(p.Price),
		PropertyType:    textPtr(p.PropertyType),
		Status:          p.Status.String,
		TransactionType: p.TransactionType.String,
		TotalArea:       floatPtr(p.TotalArea),
		Bedrooms:        int4Ptr(p.Bedrooms),
		Bathrooms:       int4Ptr(p.Bathrooms),
		Garage:          int4Ptr(p.Garage),
		Street:          textPtr(p.Street),
		Number:          textPtr(p.Number),
		Neighborhood:    textPtr(p.Neighborhood),
		City:            textPtr(p.City),
		State:           textPtr(p.State),
		Zipcode:         textPtr(p.Zipcode),
		Photos:          photos,
		CreatedAt:       timePtr(p.CreatedAt),
		UpdatedAt:       timePtr(p.UpdatedAt),
	}
}

func GetPropertiesHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	properties, err := data.SelectPropertiesByUserID(req.Context(), env.db, env.user.ID, limitParam(req, 100, 1000))
	if err != nil {
		internalError(w, env, "Failed to select properties", err)
		return
	}

	response := make([]propertyJSON, len(properties))
	for i := range properties {
		response[i] = newPropertyJSON(&properties[i])
	}

	writeJSON(w, http.StatusOK, response)
}

func CreatePropertyHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	var request struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Price           *float64 `json:"price"`
		PropertyType    string   `json:"propertyType"`
		Status          string   `json:"status"`
		TransactionType string   `json:"transactionType"`
		TotalArea       *float64 `json:"totalArea"`
		Bedrooms        *int32   `json:"bedrooms"`
		Bathrooms       *int32   `json:"bathrooms"`
		Garage          *int32   `json:"garage"`
		Street          string   `json:"street"`
		Number          string   `json:"number"`
		Neighborhood    string   `json:"neighborhood"`
		City            string   `json:"city"`
		State           string   `json:"state"`
		Zipcode         string   `json:"zipcode"`
		Photos          []string `json:"photos"`
	}

	if !decodeRequest(w, req, &request) {
		return
	}

	if request.Title == "" {
		w.WriteHeader(422)
		fmt.Fprintln(w, `Request must include the attribute "title"`)
		return
	}

	if request.Price != nil && *request.Price < 0 {
		w.WriteHeader(422)
		fmt.Fprintln(w, `"price" must not be negative`)
		return
	}

	p := &data.Property{
		UserID:          env.user.ID,
		Title:           newText(request.Title),
		Description:     newText(request.Description),
		PropertyType:    newText(request.PropertyType),
		Status:          newText(request.Status),
		TransactionType: newText(request.TransactionType),
		Street:          newText(request.Street),
		Number:          newText(request.Number),
		Neighborhood:    newText(request.Neighborhood),
		City:            newText(request.City),
		State:           newText(request.State),
		Zipcode:         newText(request.Zipcode),
		Photos:          request.Photos,
	}
	if request.Price != nil {
		p.Price = pgtype.Float8{Float64: *request.Price, Valid: true}
	}
	if request.TotalArea != nil {
		p.TotalArea = pgtype.Float8{Float64: *request.TotalArea, Valid: true}
	}
	if request.Bedrooms != nil {
		p.Bedrooms = pgtype.Int4{Int32: *request.Bedrooms, Valid: true}
	}
	if request.Bathrooms != nil {
		p.Bathrooms = pgtype.Int4{Int32: *request.Bathrooms, Valid: true}
	}
	if request.Garage != nil {
		p.Garage = pgtype.Int4{Int32: *request.Garage, Valid: true}
	}
	if p.Photos == nil {
		p.Photos = []string{}
	}

	if err := data.InsertProperty(req.Context(), env.db, p); err != nil {
		internalError(w, env, "Failed to insert property", err)
		return
	}

	env.logger.Info("Property created", "user_id", env.user.ID, "property_id", p.ID)
	writeJSON(w, http.StatusCreated, newPropertyJSON(p))
}

