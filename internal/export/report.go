/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"synthbox/internal/domain"
	"synthbox/internal/storage"
	"synthbox/internal/version"
)

// RunStats are the derived numbers shown in a run report.
type RunStats struct {
	Images         int
	Labels         int
	ObjectsMean    float64
	ObjectsStdDev  float64
	AreaMean       float64
	AreaStdDev     float64
	AreaMedian     float64
	ClassHistogram []ClassCount
}

type ClassCount struct {
	Index int
	Name  string
	Count int
}

// ComputeStats summarises objects per image and normalized box areas.
func ComputeStats(s storage.Summary, classes []domain.ClassInfo) RunStats {
	rs := RunStats{Images: len(s.ObjectsPerImage), Labels: len(s.BoxAreas)}
	if len(s.ObjectsPerImage) > 0 {
		rs.ObjectsMean = stat.Mean(s.ObjectsPerImage, nil)
	}
	if len(s.ObjectsPerImage) > 1 {
		rs.ObjectsStdDev = stat.StdDev(s.ObjectsPerImage, nil)
	}
	if len(s.BoxAreas) > 0 {
		areas := append([]float64(nil), s.BoxAreas...)
		sort.Float64s(areas)
		rs.AreaMean = stat.Mean(areas, nil)
		rs.AreaMedian = stat.Quantile(0.5, stat.Empirical, areas, nil)
		if len(areas) > 1 {
			rs.AreaStdDev = stat.StdDev(areas, nil)
		}
	}
	names := map[int]string{}
	for _, c := range classes {
		names[c.Index] = c.Name
	}
	for idx, n := range s.ClassCounts {
		name, ok := names[idx]
		if !ok {
			name = strconv.Itoa(idx)
		}
		rs.ClassHistogram = append(rs.ClassHistogram, ClassCount{Index: idx, Name: name, Count: n})
	}
	sort.Slice(rs.ClassHistogram, func(i, j int) bool { return rs.ClassHistogram[i].Index < rs.ClassHistogram[j].Index })
	return rs
}

// HistogramPNG renders the per-class label counts as a bar chart.
func HistogramPNG(hist []ClassCount) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Labels per class"
	p.Y.Label.Text = "labels"
	vals := make(plotter.Values, len(hist))
	names := make([]string, len(hist))
	for i, h := range hist {
		vals[i] = float64(h.Count)
		names[i] = h.Name
	}
	if len(vals) == 0 {
		vals = plotter.Values{0}
		names = []string{"none"}
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(24))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = color.RGBA{R: 52, G: 101, B: 164, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	wt, err := p.WriterTo(6*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("plot writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteReport writes a one-page PDF with run metadata, statistics and the class histogram.
func WriteReport(out string, s storage.Summary, classes []domain.ClassInfo) error {
	rs := ComputeStats(s, classes)
	chart, err := HistogramPNG(rs.ClassHistogram)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("synthbox run report", false)
	pdf.SetAuthor("synthbox "+version.String(), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Dataset generation report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	row := func(k, v string) {
		pdf.CellFormat(55, 6, k, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, v, "", 1, "L", false, 0, "")
	}
	row("Run", s.Run.String())
	row("Seed", strconv.FormatInt(s.Seed, 10))
	row("Started", fmtTime(s.StartedAt))
	row("Finished", fmtTime(s.FinishedAt))
	row("Images generated", strconv.Itoa(s.Generated))
	row("Images failed", strconv.Itoa(s.Failed))
	row("Objects skipped", strconv.Itoa(s.Skipped))
	row("Labels", strconv.Itoa(rs.Labels))
	row("Objects per image", fmt.Sprintf("%.2f +/- %.2f", rs.ObjectsMean, rs.ObjectsStdDev))
	row("Box area (normalized)", fmt.Sprintf("mean %.4f, median %.4f, sd %.4f", rs.AreaMean, rs.AreaMedian, rs.AreaStdDev))
	pdf.Ln(4)

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("histogram", opt, bytes.NewReader(chart))
	pdf.ImageOptions("histogram", pdf.GetX(), pdf.GetY(), 180, 0, true, opt, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(20, 6, "Index", "1", 0, "L", false, 0, "")
	pdf.CellFormat(80, 6, "Class", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Labels", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, h := range rs.ClassHistogram {
		pdf.CellFormat(20, 6, strconv.Itoa(h.Index), "1", 0, "L", false, 0, "")
		pdf.CellFormat(80, 6, h.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, strconv.Itoa(h.Count), "1", 1, "R", false, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(out); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
