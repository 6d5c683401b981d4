/*
Package report renders calculation results as an Excel workbook.

SHEETS:
  汇总报表 (summary): per-role component totals in first-seen role order,
                     followed by a grand total row.
  明细 (detail):      one row per person with the monthly incentives, every
                     bonus component, completion / collection rates, the
                     stacking mode and any validation warnings.

Amounts are written as numbers with a thousands format so the sheet stays
usable for further calculation. Rounding happens only in the cell format.
*/
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trouble2112/Bouns-tools/bonus"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "汇总报表"
	DetailSheet  = "明细"

	// Content type for HTTP responses.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Row is one person's input next to its computed breakdown.
type Row struct {
	Person    bonus.Person
	Breakdown bonus.Breakdown
	Warnings  []bonus.Issue
}

var summaryHeaders = []any{"岗位", "人数", "过程激励", "完成奖", "区域奖", "全国奖", "补贴", "CEO奖", "合计"}

var detailHeaders = []any{
	"序号", "姓名", "岗位", "区域", "组织单元",
	"1月激励", "2月激励", "3月激励", "4月激励", "5月激励", "6月激励", "过程激励小计",
	"完成奖90%", "完成奖100%", "完成奖小计",
	"区域奖", "全国奖", "固定补贴", "CEO奖金",
	"奖金合计", "完成率", "回款率", "叠加模式", "提示",
}

// Money columns on the detail sheet (1-based), from 1月激励 to 奖金合计.
const (
	detailFirstMoneyCol = 6
	detailLastMoneyCol  = 20
)

type styles struct {
	title, header, money, percent, warning int
}

// Build creates the workbook. The caller owns the returned file and must Close it.
func Build(rows []Row, summary bonus.Summary, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating detail sheet: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, st, rows, summary, generatedAt); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing summary sheet: %w", err)
	}
	if err := writeDetail(f, st, rows); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing detail sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, rows []Row, summary bonus.Summary, generatedAt time.Time) error {
	f, err := Build(rows, summary, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Write(w)
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	moneyFmt := "#,##0.00"
	percentFmt := "0.0%"

	defs := []struct {
		id    *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}},
		{&st.header, &excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1976D2"}},
		}},
		{&st.money, &excelize.Style{CustomNumFmt: &moneyFmt}},
		{&st.percent, &excelize.Style{CustomNumFmt: &percentFmt}},
		{&st.warning, &excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFA726"}}}},
	}
	for _, d := range defs {
		if *d.id, err = f.NewStyle(d.style); err != nil {
			return styles{}, fmt.Errorf("creating style: %w", err)
		}
	}
	return st, nil
}

// =============================================================================
// SUMMARY SHEET
// =============================================================================

type roleStats struct {
	incentive, completion, region, national, subsidy, ceo decimal.Decimal
}

func writeSummary(f *excelize.File, st styles, rows []Row, summary bonus.Summary, generatedAt time.Time) error {
	sheet := SummarySheet

	if err := f.SetCellValue(sheet, "A1", "奖金汇总报表"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", st.title); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "A2", "生成时间 "+generatedAt.Format("2006-01-02 15:04")); err != nil {
		return err
	}

	if err := writeHeader(f, sheet, 4, summaryHeaders, st.header); err != nil {
		return err
	}

	stats := make(map[bonus.Role]*roleStats)
	for _, r := range rows {
		s, ok := stats[r.Breakdown.Role]
		if !ok {
			s = &roleStats{}
			stats[r.Breakdown.Role] = s
		}
		b := r.Breakdown
		s.incentive = s.incentive.Add(b.Incentive)
		s.completion = s.completion.Add(b.CompletionBonusTotal)
		s.region = s.region.Add(b.RegionBonus)
		s.national = s.national.Add(b.NationalBonus)
		s.subsidy = s.subsidy.Add(b.Subsidy)
		s.ceo = s.ceo.Add(b.CEOBonus)
	}

	row := 5
	var total roleStats
	for _, rs := range summary.Roles {
		s := stats[rs.Role]
		if s == nil {
			s = &roleStats{}
		}
		values := []any{
			rs.RoleName, rs.Count,
			money(s.incentive), money(s.completion), money(s.region),
			money(s.national), money(s.subsidy), money(s.ceo), money(rs.Total),
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		total.region = total.region.Add(s.region)
		total.national = total.national.Add(s.national)
		total.subsidy = total.subsidy.Add(s.subsidy)
		total.ceo = total.ceo.Add(s.ceo)
		row++
	}

	totals := []any{
		"合计", summary.Count,
		money(summary.Incentive), money(summary.CompletionBonus), money(total.region),
		money(total.national), money(total.subsidy), money(total.ceo), money(summary.Total),
	}
	if err := setRow(f, sheet, row, totals); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell(1, row), cell(2, row), st.header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell(3, 5), cell(len(summaryHeaders), row), st.money); err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "A", "A", 16); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", column(len(summaryHeaders)), 14)
}

// =============================================================================
// DETAIL SHEET
// =============================================================================

func writeDetail(f *excelize.File, st styles, rows []Row) error {
	sheet := DetailSheet

	if err := writeHeader(f, sheet, 1, detailHeaders, st.header); err != nil {
		return err
	}

	for i, r := range rows {
		b := r.Breakdown
		rowNum := i + 2

		values := []any{i + 1, b.Name, b.RoleName, r.Person.Region, r.Person.Org}
		for _, m := range b.MonthlyIncentives {
			values = append(values, money(m))
		}
		values = append(values,
			money(b.Incentive),
			money(b.CompletionBonus90), money(b.CompletionBonus100), money(b.CompletionBonusTotal),
			money(b.RegionBonus), money(b.NationalBonus), money(b.Subsidy), money(b.CEOBonus),
			money(b.Total),
			b.CompletionRate.InexactFloat64(), b.CollectionRate.InexactFloat64(),
			string(b.Mode), joinWarnings(r.Warnings),
		)
		if err := setRow(f, sheet, rowNum, values); err != nil {
			return err
		}
		if len(r.Warnings) > 0 {
			c := cell(len(detailHeaders), rowNum)
			if err := f.SetCellStyle(sheet, c, c, st.warning); err != nil {
				return err
			}
		}
	}

	if len(rows) > 0 {
		last := len(rows) + 1
		if err := f.SetCellStyle(sheet, cell(detailFirstMoneyCol, 2), cell(detailLastMoneyCol, last), st.money); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell(detailLastMoneyCol+1, 2), cell(detailLastMoneyCol+2, last), st.percent); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		XSplit:      2,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "E", 14); err != nil {
		return err
	}
	return f.SetColWidth(sheet, column(len(detailHeaders)), column(len(detailHeaders)), 40)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeHeader(f *excelize.File, sheet string, row int, headers []any, style int) error {
	if err := setRow(f, sheet, row, headers); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell(1, row), cell(len(headers), row), style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	return f.SetSheetRow(sheet, cell(1, row), &values)
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		panic(err) // col and row are always positive here
	}
	return name
}

func column(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		panic(err)
	}
	return name
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func joinWarnings(issues []bonus.Issue) string {
	parts := make([]string, len(issues))
	for i, is := range issues {
		parts[i] = is.String()
	}
	return strings.Join(parts, "; ")
}
