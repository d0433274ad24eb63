// Package importer loads property listings from CSV exports into imoveis_venda.
package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/imoveplus/crm/backend/data"
	"github.com/imoveplus/crm/backend/feed"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	DefaultTitle        = "Sem título"
	DefaultPropertyType = "Apartamento"
	DefaultConcurrency  = 4
)

// Row is one parsed CSV record. Line is the 1-based line number in the input. Err is set when the record could not
// be read.
type Row struct {
	Line     int
	Property data.Property
	Err      error
}

type Inserter interface {
	InsertProperty(ctx context.Context, row *data.Property) error
}

type DBInserter struct {
	DB data.Queryer
}

func (i DBInserter) InsertProperty(ctx context.Context, row *data.Property) error {
	return data.InsertProperty(ctx, i.DB, row)
}

type Result struct {
	Success int64
	Errors  int64
}

func (r Result) Total() int64 {
	return r.Success + r.Errors
}

// Parse reads a CSV document with a header row. encoding names the input character set (e.g. "latin1"); empty means
// UTF-8. Every row is owned by userID.
func Parse(r io.Reader, encoding string, userID string) ([]Row, error) {
	if encoding != "" {
		var err error
		r, err = charset.NewReaderLabel(encoding, r)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
		}
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, Row{Line: parseErr.Line, Err: err})
				continue
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		get := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		rows = append(rows, Row{Line: line, Property: newProperty(get, userID)})
	}

	return rows, nil
}

func newProperty(get func(string) string, userID string) data.Property {
	p := data.Property{
		UserID:          userID,
		Title:           text(get("titulo"), DefaultTitle),
		Description:     text(get("descricao"), ""),
		Price:           float(get("preco")),
		PropertyType:    text(get("tipo_imovel"), DefaultPropertyType),
		Status:          text(feed.StatusAvailable, ""),
		TransactionType: text(feed.TransactionSale, ""),
		Bedrooms:        integer(get("quartos")),
		Bathrooms:       integer(get("banheiros")),
		Garage:          integer(get("garagem")),
		Street:          text(get("endereco"), ""),
		Number:          text(get("numero"), ""),
		Neighborhood:    text(get("bairro"), ""),
		City:            text(get("cidade"), ""),
		State:           text(get("estado"), ""),
		Photos:          photos(get("imagens_url")),
	}
	if s := get("area_total"); s != "" {
		p.TotalArea = float(s)
	}
	if s := get("cep"); s != "" {
		p.Zipcode = text(s, "")
	}
	return p
}

func text(s, fallback string) pgtype.Text {
	if s == "" {
		s = fallback
	}
	return pgtype.Text{String: s, Valid: true}
}

func float(s string) pgtype.Float8 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f = 0
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

func integer(s string) pgtype.Int4 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			n = int64(f)
		} else {
			n = 0
		}
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}
}

// photos decodes a JSON array of URLs. Anything else yields no photos.
func photos(s string) []string {
	urls := []string{}
	if s == "" {
		return urls
	}
	if err := json.Unmarshal([]byte(s), &urls); err != nil {
		return []string{}
	}
	return urls
}

// Import inserts rows with at most concurrency inserts in flight. Rows that failed to parse or insert are counted
// as errors and logged. Import only returns early if ctx is canceled.
func Import(ctx context.Context, inserter Inserter, rows []Row, concurrency int, logger log.Logger) (Result, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	var success, failed atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i := range rows {
		row := &rows[i]
		if row.Err != nil {
			logger.Warn("Skipping unreadable row", "line", row.Line, "error", row.Err)
			failed.Add(1)
			continue
		}

		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				failed.Add(1)
				return err
			}
			err := inserter.InsertProperty(egCtx, &row.Property)
			if err != nil {
				logger.Error("Failed to import property", "line", row.Line, "title", row.Property.Title.String, "error", err)
				failed.Add(1)
				return nil
			}
			logger.Info("Imported property", "line", row.Line, "id", row.Property.ID, "title", row.Property.Title.String)
			success.Add(1)
			return nil
		})
	}
	err := eg.Wait()

	return Result{Success: success.Load(), Errors: failed.Load()}, err
}
