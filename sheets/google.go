package sheets

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const currencyPattern = "$#,##0.00"

// GoogleClient writes to the first worksheet of a spreadsheet through the
// Sheets v4 API.
type GoogleClient struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetID       int64
	title         string
}

// NewGoogleClient authenticates with a service account credentials file.
func NewGoogleClient(ctx context.Context, credentialsFile, spreadsheetID string) (*GoogleClient, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sheets service")
	}

	spreadsheet, err := svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open spreadsheet %s", spreadsheetID)
	}

	if len(spreadsheet.Sheets) == 0 || spreadsheet.Sheets[0].Properties == nil {
		return nil, errors.Errorf("spreadsheet %s has no worksheets", spreadsheetID)
	}

	props := spreadsheet.Sheets[0].Properties

	return &GoogleClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetID:       props.SheetId,
		title:         props.Title,
	}, nil
}

// sheetRange quotes the worksheet title for A1 notation.
func (c *GoogleClient) sheetRange() string {
	return "'" + strings.ReplaceAll(c.title, "'", "''") + "'"
}

func (c *GoogleClient) RowCount(ctx context.Context) (int, error) {
	res, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetRange()).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	return len(res.Values), nil
}

func (c *GoogleClient) Replace(ctx context.Context, rows [][]interface{}) error {
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.sheetRange(), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return errors.Wrap(err, "failed to clear sheet")
	}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.sheetRange()+"!A1", &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return errors.Wrap(err, "failed to write sheet")
	}

	return nil
}

func (c *GoogleClient) Format(ctx context.Context, layout Layout) error {
	requests := []*sheets.Request{{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:         c.sheetID,
				StartRowIndex:   0,
				EndRowIndex:     1,
				ForceSendFields: []string{"SheetId", "StartRowIndex"},
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					TextFormat: &sheets.TextFormat{Bold: true},
				},
			},
			Fields: "userEnteredFormat.textFormat.bold",
		},
	}}

	for _, col := range layout.CurrencyColumns {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          c.sheetID,
					StartRowIndex:    1,
					StartColumnIndex: int64(col),
					EndColumnIndex:   int64(col) + 1,
					ForceSendFields:  []string{"SheetId", "StartColumnIndex"},
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{Type: "NUMBER", Pattern: currencyPattern},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}

	for i, width := range layout.Widths {
		if width == 0 {
			continue
		}
		requests = append(requests, &sheets.Request{
			UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
				Range: &sheets.DimensionRange{
					SheetId:         c.sheetID,
					Dimension:       "COLUMNS",
					StartIndex:      int64(i),
					EndIndex:        int64(i) + 1,
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
				Properties: &sheets.DimensionProperties{PixelSize: width},
				Fields:     "pixelSize",
			},
		})
	}

	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	return err
}
