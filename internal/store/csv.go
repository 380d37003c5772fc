package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tatsoft-analytics/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

var salesColumns = []string{"id", "confirmation_date", "collaborator_id", "collaborator_name", "total_amount", "zone_name"}

var statColumns = []string{"id", "name", "quantity", "amount_total"}

// CSVSource reads exported CSV files. Products and clients are optional; an
// empty path yields an empty set. Dates without an offset are read in
// Location, or UTC when it is nil.
type CSVSource struct {
	SalesPath    string
	ProductsPath string
	ClientsPath  string
	Location     *time.Location
}

func NewCSVSource(salesPath, productsPath, clientsPath string) *CSVSource {
	return &CSVSource{
		SalesPath:    salesPath,
		ProductsPath: productsPath,
		ClientsPath:  clientsPath,
	}
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Close() error { return nil }

func (s *CSVSource) LoadSales(ctx context.Context) ([]models.SaleRecord, LoadReport, error) {
	file, err := os.Open(s.SalesPath)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return ReadSales(ctx, file, s.Location)
}

type parsedRow struct {
	line   int
	fields []string
}

type parsedSale struct {
	record   models.SaleRecord
	rejected error
	flagged  error
}

// ReadSales streams sales rows from r. Rows are parsed in parallel batches but
// the returned records keep file order. A file whose rows are all rejected
// yields an empty slice; the report says why.
func ReadSales(ctx context.Context, r io.Reader, loc *time.Location) ([]models.SaleRecord, LoadReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var report LoadReport
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, report, fmt.Errorf("empty file")
		}
		return nil, report, fmt.Errorf("read header: %w", err)
	}

	index, err := columnIndex(header, salesColumns)
	if err != nil {
		return nil, report, err
	}

	records := make([]models.SaleRecord, 0, batchSize)
	batch := make([]parsedRow, 0, batchSize)
	line := 1

	flush := func() error {
		parsed, err := parseSalesBatch(ctx, batch, index, loc)
		if err != nil {
			return err
		}
		for i, p := range parsed {
			switch {
			case p.rejected != nil:
				report.reject(batch[i].line, p.rejected)
				continue
			case p.flagged != nil:
				report.flag(batch[i].line, p.flagged)
			}
			records = append(records, p.record)
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, report, ctx.Err()
		default:
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		report.Rows++
		if err != nil {
			report.reject(line, err)
			continue
		}

		batch = append(batch, parsedRow{line: line, fields: fields})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, report, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, report, err
		}
	}

	return records, report, nil
}

func parseSalesBatch(ctx context.Context, batch []parsedRow, index map[string]int, loc *time.Location) ([]parsedSale, error) {
	var g errgroup.Group
	g.SetLimit(maxWorkers)

	out := make([]parsedSale, len(batch))
	for i, row := range batch {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			out[i] = parseSale(row.fields, index, loc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseSale(fields []string, index map[string]int, loc *time.Location) parsedSale {
	get := func(col string) string {
		i := index[col]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	for _, i := range index {
		if i >= len(fields) {
			return parsedSale{rejected: fmt.Errorf("insufficient columns: got %d", len(fields))}
		}
	}

	id := get("id")
	if id == "" {
		return parsedSale{rejected: fmt.Errorf("missing id")}
	}

	rec := models.SaleRecord{
		ID:               id,
		CollaboratorID:   models.CollaboratorID(get("collaborator_id")),
		CollaboratorName: get("collaborator_name"),
		ZoneName:         models.ZoneName(get("zone_name")),
	}

	var flagged error
	date, err := parseDate(get("confirmation_date"), loc)
	if err != nil {
		flagged = err
	}
	rec.ConfirmationDate = date

	amount, err := strconv.ParseFloat(get("total_amount"), 64)
	if err != nil {
		amount = invalidAmount
		if flagged == nil {
			flagged = fmt.Errorf("invalid total amount %q", get("total_amount"))
		}
	}
	rec.TotalAmount = amount

	return parsedSale{record: rec, flagged: flagged}
}

func (s *CSVSource) LoadProducts(ctx context.Context) ([]models.ProductStat, error) {
	rows, err := readStats(ctx, s.ProductsPath)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make([]models.ProductStat, len(rows))
	for i, r := range rows {
		out[i] = models.ProductStat(r)
	}
	return out, nil
}

func (s *CSVSource) LoadClients(ctx context.Context) ([]models.ClientStat, error) {
	rows, err := readStats(ctx, s.ClientsPath)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	out := make([]models.ClientStat, len(rows))
	for i, r := range rows {
		out[i] = models.ClientStat(r)
	}
	return out, nil
}

type statRow struct {
	ID          string
	Name        string
	Quantity    int
	AmountTotal float64
}

func readStats(ctx context.Context, path string) ([]statRow, error) {
	if path == "" {
		return []statRow{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return readStatRows(ctx, file)
}

// readStatRows reads an id,name,quantity,amount_total file. Unlike sales, a bad
// stat row fails the whole load: rankings over a partial list would be wrong.
func readStatRows(ctx context.Context, r io.Reader) ([]statRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []statRow{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index, err := columnIndex(header, statColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]statRow, 0)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		qty, err := strconv.Atoi(strings.TrimSpace(fields[index["quantity"]]))
		if err != nil || qty < 0 {
			return nil, fmt.Errorf("row %d: invalid quantity %q", line, fields[index["quantity"]])
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(fields[index["amount_total"]]), 64)
		if err != nil || amount < 0 {
			return nil, fmt.Errorf("row %d: invalid amount %q", line, fields[index["amount_total"]])
		}

		rows = append(rows, statRow{
			ID:          strings.TrimSpace(fields[index["id"]]),
			Name:        strings.TrimSpace(fields[index["name"]]),
			Quantity:    qty,
			AmountTotal: amount,
		})
	}
	return rows, nil
}

func columnIndex(header, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	out := make(map[string]int, len(required))
	var missing []string
	for _, col := range required {
		i, ok := index[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		out[col] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
