package graph

import (
	"fmt"
	"math"
	"strings"
)

// monthLabels はX軸に表示する月名。
var monthLabels = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// チャートの描画領域。ビューボックスは800x500で、
// 左と下に軸ラベル用の余白を確保する。
const (
	chartWidth   = 800
	chartHeight  = 500
	marginLeft   = 70
	marginRight  = 30
	marginTop    = 50
	marginBottom = 90
)

// series は1本の折れ線とその凡例名。
type series struct {
	Label  string
	Color  string
	Values []float64
}

// RenderPrecipitation は月間降水量の折れ線グラフをSVG文字列として返す。
func RenderPrecipitation(title string, summary YearSummary) string {
	values := make([]float64, 12)
	for i, monthly := range summary {
		values[i] = monthly.PrecipitationMM()
	}
	return renderLineChart(title, []series{
		{Label: "Precip(mm)", Color: "#1f77b4", Values: values},
	})
}

// RenderTemperatures は月間平均最高気温と最低気温の折れ線グラフを
// SVG文字列として返す。
func RenderTemperatures(title string, summary YearSummary) string {
	highs := make([]float64, 12)
	lows := make([]float64, 12)
	for i, monthly := range summary {
		highs[i] = monthly.AvgHighC()
		lows[i] = monthly.AvgLowC()
	}
	return renderLineChart(title, []series{
		{Label: "Avg High(C)", Color: "#d62728", Values: highs},
		{Label: "Avg Low(C)", Color: "#1f77b4", Values: lows},
	})
}

// renderLineChart は複数系列の折れ線グラフを描画する。
// Y軸の範囲は全系列の最小値と最大値から決定し、
// 全値が同一の場合は±1のパディングでゼロ除算を避ける。
func renderLineChart(title string, allSeries []series) string {
	minValue, maxValue := math.Inf(1), math.Inf(-1)
	for _, s := range allSeries {
		for _, v := range s.Values {
			minValue = math.Min(minValue, v)
			maxValue = math.Max(maxValue, v)
		}
	}
	if minValue > 0 {
		minValue = 0
	}
	if maxValue <= minValue {
		maxValue = minValue + 1
	}

	plotWidth := float64(chartWidth - marginLeft - marginRight)
	plotHeight := float64(chartHeight - marginTop - marginBottom)

	xAt := func(monthIndex int) float64 {
		return float64(marginLeft) + plotWidth*float64(monthIndex)/11.0
	}
	yAt := func(value float64) float64 {
		return float64(marginTop) + plotHeight*(1.0-(value-minValue)/(maxValue-minValue))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d">`+"\n",
		chartWidth, chartHeight)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`+"\n", chartWidth, chartHeight)
	fmt.Fprintf(&b, `<title>%s</title>`+"\n", escapeText(title))
	fmt.Fprintf(&b, `<text x="%d" y="30" font-size="20" text-anchor="middle" font-family="sans-serif">%s</text>`+"\n",
		chartWidth/2, escapeText(title))

	// 軸
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333"/>`+"\n",
		marginLeft, marginTop, marginLeft, chartHeight-marginBottom)
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333"/>`+"\n",
		marginLeft, chartHeight-marginBottom, chartWidth-marginRight, chartHeight-marginBottom)

	// Y軸の目盛り (5分割)
	for i := 0; i <= 4; i++ {
		value := minValue + (maxValue-minValue)*float64(i)/4.0
		y := yAt(value)
		fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#ddd"/>`+"\n",
			marginLeft, y, chartWidth-marginRight, y)
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" font-size="12" text-anchor="end" font-family="sans-serif">%.1f</text>`+"\n",
			marginLeft-8, y+4, value)
	}

	// X軸の月ラベル (回転表示)
	for monthIndex, label := range monthLabels {
		x := xAt(monthIndex)
		y := float64(chartHeight - marginBottom + 12)
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" font-size="12" text-anchor="end" font-family="sans-serif" transform="rotate(-90 %.1f %.1f)">%s</text>`+"\n",
			x, y, x, y, label)
	}

	// 折れ線と凡例
	for seriesIndex, s := range allSeries {
		points := make([]string, 0, len(s.Values))
		for monthIndex, value := range s.Values {
			points = append(points, fmt.Sprintf("%.1f,%.1f", xAt(monthIndex), yAt(value)))
		}
		fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"/>`+"\n",
			s.Color, strings.Join(points, " "))

		legendY := marginTop + 16*seriesIndex
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="12" height="12" fill="%s"/>`+"\n",
			chartWidth-marginRight-130, legendY, s.Color)
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="12" font-family="sans-serif">%s</text>`+"\n",
			chartWidth-marginRight-112, legendY+10, escapeText(s.Label))
	}

	b.WriteString("</svg>\n")
	return b.String()
}

// escapeText はSVGのテキストノードに埋め込む文字列をエスケープする。
func escapeText(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
