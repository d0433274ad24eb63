package importer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/imoveplus/crm/backend/data"
	"github.com/imoveplus/crm/backend/importer"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	log "gopkg.in/inconshreveable/log15.v2"
)

const sampleCSV = `titulo,descricao,preco,tipo_imovel,tipo_transacao,quartos,banheiros,garagem,endereco,numero,bairro,cidade,estado,area_total,imagens_url
"Casa, vista mar",Linda casa,850000.50,Casa,For Sale,4,3,2,Rua A,10,Centro,Florianópolis,SC,320.5,"[""https://cdn.example.com/1.jpg"",""https://cdn.example.com/2.jpg""]"
,,abc,,,x,,,,,,,,,not json
`

func discardLogger() log.Logger {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return logger
}

func TestParse(t *testing.T) {
	rows, err := importer.Parse(strings.NewReader(sampleCSV), "", "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	p := rows[0].Property
	assert.Equal(t, 2, rows[0].Line)
	assert.NoError(t, rows[0].Err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "Casa, vista mar", p.Title.String)
	assert.Equal(t, "Linda casa", p.Description.String)
	assert.Equal(t, 850000.5, p.Price.Float64)
	assert.Equal(t, "Casa", p.PropertyType.String)
	assert.Equal(t, "Available", p.Status.String)
	assert.Equal(t, "Sale", p.TransactionType.String)
	assert.EqualValues(t, 4, p.Bedrooms.Int32)
	assert.EqualValues(t, 3, p.Bathrooms.Int32)
	assert.EqualValues(t, 2, p.Garage.Int32)
	assert.Equal(t, "Florianópolis", p.City.String)
	assert.True(t, p.TotalArea.Valid)
	assert.Equal(t, 320.5, p.TotalArea.Float64)
	assert.Equal(t, []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"}, p.Photos)
	assert.False(t, p.Zipcode.Valid)
}

func TestParseDefaults(t *testing.T) {
	rows, err := importer.Parse(strings.NewReader(sampleCSV), "", "user-1")
	require.NoError(t, err)

	p := rows[1].Property
	assert.Equal(t, importer.DefaultTitle, p.Title.String)
	assert.Equal(t, importer.DefaultPropertyType, p.PropertyType.String)
	assert.True(t, p.Price.Valid)
	assert.Equal(t, 0.0, p.Price.Float64)
	assert.True(t, p.Bedrooms.Valid)
	assert.EqualValues(t, 0, p.Bedrooms.Int32)
	assert.False(t, p.TotalArea.Valid)
	assert.Equal(t, []string{}, p.Photos)
}

func TestParseLatin1(t *testing.T) {
	input := "titulo,cidade\nCasa,Florian\xf3polis\n"

	rows, err := importer.Parse(strings.NewReader(input), "latin1", "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Florianópolis", rows[0].Property.City.String)
}

func TestParseUnknownEncoding(t *testing.T) {
	_, err := importer.Parse(strings.NewReader("titulo\nCasa\n"), "klingon", "user-1")
	require.Error(t, err)
}

func TestParseEmptyInput(t *testing.T) {
	_, err := importer.Parse(strings.NewReader(""), "", "user-1")
	require.Error(t, err)
}

type fakeInserter struct {
	mutex    sync.Mutex
	inserted []string
	failOn   string
}

func (f *fakeInserter) InsertProperty(ctx context.Context, row *data.Property) error {
	if row.Title.String == f.failOn {
		return errors.New("check constraint violated")
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.inserted = append(f.inserted, row.Title.String)
	row.ID = int64(len(f.inserted))
	return nil
}

func TestImport(t *testing.T) {
	rows := []importer.Row{
		{Line: 2, Property: data.Property{Title: textValue("A")}},
		{Line: 3, Property: data.Property{Title: textValue("B")}},
		{Line: 4, Err: errors.New("bare quote")},
		{Line: 5, Property: data.Property{Title: textValue("C")}},
	}
	inserter := &fakeInserter{failOn: "B"}

	result, err := importer.Import(context.Background(), inserter, rows, 2, discardLogger())
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Success)
	assert.EqualValues(t, 2, result.Errors)
	assert.EqualValues(t, 4, result.Total())
	assert.ElementsMatch(t, []string{"A", "C"}, inserter.inserted)
}

func TestImportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []importer.Row{
		{Line: 2, Property: data.Property{Title: textValue("A")}},
		{Line: 3, Property: data.Property{Title: textValue("B")}},
		{Line: 4, Err: errors.New("bad quote")},
	}
	inserter := &fakeInserter{}
	result, err := importer.Import(ctx, inserter, rows, 1, discardLogger())
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, result.Success)
	assert.EqualValues(t, 3, result.Errors)
	assert.EqualValues(t, len(rows), result.Total())
	assert.Empty(t, inserter.inserted)
}

func textValue(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}
