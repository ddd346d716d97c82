package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"faturas/model"
)

const (
	summarySheet  = "Resumo"
	accountsSheet = "Contas"
)

// WriteXLSX writes the report as a two-sheet workbook: counts per outcome
// and one row per account.
func (r Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(accountsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	summary := [][]any{
		{"Execução", r.RunID},
		{"Início", r.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duração (s)", r.Elapsed.Seconds()},
		{"Processadas", r.Processed},
		{"Interrompida", r.Cancelled},
		{},
		{"Resultado", "Quantidade"},
	}
	for _, o := range model.Outcomes {
		summary = append(summary, []any{string(o), r.Counts[o]})
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	timings := make(map[string]float64, len(r.Timings))
	for _, t := range r.Timings {
		timings[t.Account] += t.Elapsed.Seconds()
	}
	rows := [][]any{{"Conta", "Resultado", "Detalhe", "Arquivos", "Tempo (s)"}}
	for _, o := range model.Outcomes {
		accounts := append([]string(nil), r.Accounts[o]...)
		sort.Strings(accounts)
		for _, acc := range accounts {
			rows = append(rows, []any{acc, string(o), r.Details[acc], len(r.Files[acc]), timings[acc]})
		}
	}
	if err := writeRows(f, accountsSheet, rows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
