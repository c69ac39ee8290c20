// Package graph は気候データセットのCSVから月次サマリーを集計し、
// 降水量と気温のSVGグラフを生成する。
package graph

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// MonthlySummary は1か月分の気候観測値の集計。
// 観測値は元データと同じく10分の1単位（降水量は0.1mm、気温は0.1°C）で保持し、
// 表示用の換算はアクセサ側で行う。
type MonthlySummary struct {
	DaysOfData          int
	PrecipitationTotal  int
	MinTemperatureTotal int
	MaxTemperatureTotal int
}

// PrecipitationMM は月間降水量をミリメートルで返す。
func (m MonthlySummary) PrecipitationMM() float64 {
	return float64(m.PrecipitationTotal) / 10.0
}

// AvgHighC は月間平均最高気温を摂氏で返す。
// 観測日が1日もない月は0を返す。
func (m MonthlySummary) AvgHighC() float64 {
	if m.DaysOfData == 0 {
		return 0
	}
	return float64(m.MaxTemperatureTotal) / 10.0 / float64(m.DaysOfData)
}

// AvgLowC は月間平均最低気温を摂氏で返す。
// 観測日が1日もない月は0を返す。
func (m MonthlySummary) AvgLowC() float64 {
	if m.DaysOfData == 0 {
		return 0
	}
	return float64(m.MinTemperatureTotal) / 10.0 / float64(m.DaysOfData)
}

// YearSummary は1月から12月までの月次サマリー。
type YearSummary [12]MonthlySummary

// Summarize は気候観測CSVを読み込み、月ごとに集計する。
// CSVはDATE、PRCP、TMIN、TMAXの列を持つヘッダー行で始まることを前提とし、
// 列の順序はヘッダーから解決する。DATE列はYYYYMMDD形式で、
// 5〜6文字目が月を表す。
func Summarize(r io.Reader) (YearSummary, error) {
	var summary YearSummary

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return summary, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dateIndex, prcpIndex, tminIndex, tmaxIndex := -1, -1, -1, -1
	for i, name := range header {
		switch name {
		case "DATE":
			dateIndex = i
		case "PRCP":
			prcpIndex = i
		case "TMIN":
			tminIndex = i
		case "TMAX":
			tmaxIndex = i
		}
	}
	if dateIndex < 0 || prcpIndex < 0 || tminIndex < 0 || tmaxIndex < 0 {
		return summary, fmt.Errorf("CSV header is missing required columns (DATE, PRCP, TMIN, TMAX): %v", header)
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if len(row) <= dateIndex || len(row) <= prcpIndex ||
			len(row) <= tminIndex || len(row) <= tmaxIndex {
			return summary, fmt.Errorf("CSV row has too few columns: %v", row)
		}

		date := row[dateIndex]
		if len(date) < 6 {
			return summary, fmt.Errorf("invalid DATE value: %q", date)
		}
		month, err := strconv.Atoi(date[4:6])
		if err != nil || month < 1 || month > 12 {
			return summary, fmt.Errorf("invalid month in DATE value: %q", date)
		}

		prcp, err := strconv.Atoi(row[prcpIndex])
		if err != nil {
			return summary, fmt.Errorf("invalid PRCP value: %q", row[prcpIndex])
		}
		tmin, err := strconv.Atoi(row[tminIndex])
		if err != nil {
			return summary, fmt.Errorf("invalid TMIN value: %q", row[tminIndex])
		}
		tmax, err := strconv.Atoi(row[tmaxIndex])
		if err != nil {
			return summary, fmt.Errorf("invalid TMAX value: %q", row[tmaxIndex])
		}

		data := &summary[month-1]
		data.DaysOfData++
		data.PrecipitationTotal += prcp
		data.MinTemperatureTotal += tmin
		data.MaxTemperatureTotal += tmax
	}

	return summary, nil
}
