package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"niftiverify/internal/models"
	"niftiverify/pkg/nifti"
	"niftiverify/pkg/summary"
)

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// Run bundles a batch summary with its results for JSON output.
type Run struct {
	Summary models.RunSummary `json:"summary"`
	Results []models.Result   `json:"results"`
}

// WriteResults renders one row per round trip followed by a totals line.
func WriteResults(w io.Writer, results []models.Result, s models.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSHAPE\tBYTES\tSTATUS\tDETAIL")
	for _, r := range results {
		kind := "-"
		if r.Kind != 0 {
			kind = r.Kind.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Name, kind, shapeString(r.Shape), r.Bytes, status(r), detail(r))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed, %d total in %v (run %s)\n",
		s.Passed, s.Failed, s.Total, s.Duration.Round(time.Millisecond), s.RunID)
	return err
}

func status(r models.Result) string {
	switch {
	case r.Err != nil:
		return "FAIL"
	case r.OK():
		return "OK"
	default:
		return "MISMATCH"
	}
}

func detail(r models.Result) string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s", r.Stage, Message(r.ErrorKind))
	}
	if r.Report == nil {
		return ""
	}
	var parts []string
	if r.Report.Identical() {
		parts = append(parts, "identical")
	} else {
		parts = append(parts, "differs in "+strings.Join(differences(*r.Report), ", "))
	}
	if r.Fidelity != nil {
		parts = append(parts, fmt.Sprintf("rmse %.6g", r.Fidelity.RMSE))
	}
	if r.BytesIdentical {
		parts = append(parts, "bytes identical")
	}
	return strings.Join(parts, "; ")
}

// differences lists the fields a report flags as different.
func differences(r nifti.CompareReport) []string {
	var out []string
	if !r.ShapesMatch {
		out = append(out, "shape")
	}
	if !r.DtypesMatch {
		out = append(out, "dtype")
	}
	if r.ShapesMatch && r.DtypesMatch && !r.ValuesMatch {
		out = append(out, fmt.Sprintf("%d values", r.MismatchCount))
	}
	if !r.TransformsMatch {
		out = append(out, "transform")
	}
	if !r.ScalesMatch {
		out = append(out, "scale")
	}
	if !r.DescriptorsMatch {
		out = append(out, "descriptor")
	}
	return out
}

// WriteCompare renders a comparison report, with optional fidelity metrics.
func WriteCompare(w io.Writer, r nifti.CompareReport, f *summary.Fidelity) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "shapes match\t%t\n", r.ShapesMatch)
	fmt.Fprintf(tw, "dtypes match\t%t\n", r.DtypesMatch)
	fmt.Fprintf(tw, "values match\t%t\n", r.ValuesMatch)
	fmt.Fprintf(tw, "mismatch count\t%d\n", r.MismatchCount)
	if r.FirstMismatchIndex != nil {
		fmt.Fprintf(tw, "first mismatch\t%d\n", *r.FirstMismatchIndex)
	}
	fmt.Fprintf(tw, "transforms match\t%t\n", r.TransformsMatch)
	fmt.Fprintf(tw, "scales match\t%t\n", r.ScalesMatch)
	fmt.Fprintf(tw, "descriptors match\t%t\n", r.DescriptorsMatch)
	if f != nil {
		fmt.Fprintf(tw, "rmse\t%.6g\n", f.RMSE)
		fmt.Fprintf(tw, "max abs diff\t%.6g\n", f.MaxAbsDiff)
		fmt.Fprintf(tw, "correlation\t%.6g\n", f.Correlation)
		fmt.Fprintf(tw, "ssim\t%.6g\n", f.SSIM)
	}
	verdict := "IDENTICAL"
	if !r.Identical() {
		verdict = "DIFFERENT"
	}
	fmt.Fprintf(tw, "verdict\t%s\n", verdict)
	return tw.Flush()
}

// WriteInspection renders the header fields and per-channel statistics.
func WriteInspection(w io.Writer, in *Inspection) error {
	h := in.Header
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "datatype\t%s (code %d, bitpix %d)\n", h.Datatype, h.Code, h.Bitpix)
	fmt.Fprintf(tw, "dims\t%s\n", shapeString(h.Dims))
	fmt.Fprintf(tw, "pixdim\t%v\n", h.Pixdim)
	fmt.Fprintf(tw, "voxels\t%d\n", h.Voxels)
	fmt.Fprintf(tw, "vox_offset\t%d\n", h.VoxOffset)
	fmt.Fprintf(tw, "bytes\t%d\n", in.Bytes)
	fmt.Fprintf(tw, "scale\tslope %g, intercept %g\n", h.Scale.Slope, h.Scale.Intercept)
	fmt.Fprintf(tw, "qform/sform\t%d / %d\n", h.QformCode, h.SformCode)
	for i, row := range h.Affine {
		fmt.Fprintf(tw, "affine[%d]\t%g %g %g %g\n", i, row[0], row[1], row[2], row[3])
	}
	if w := h.World; w != nil {
		fmt.Fprintf(tw, "world first\t%g %g %g\n", w.First[0], w.First[1], w.First[2])
		fmt.Fprintf(tw, "world last\t%g %g %g\n", w.Last[0], w.Last[1], w.Last[2])
		fmt.Fprintf(tw, "origin voxel\t%g %g %g\n", w.Origin[0], w.Origin[1], w.Origin[2])
	}
	fmt.Fprintf(tw, "descrip\t%q\n", h.Descrip)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CHANNEL\tMIN\tMAX\tMEAN\tSTD\tENTROPY\tNONFINITE\t")
	for _, c := range in.Summary.Channels {
		fmt.Fprintf(tw, "%d\t%.6g\t%.6g\t%.6g\t%.6g\t%.4f\t%d\t\n",
			c.Channel, c.Min, c.Max, c.Mean, c.Std, c.Entropy, c.NonFinite)
	}
	return tw.Flush()
}

// Written records a fixture persisted by the generator.
type Written struct {
	Name  string            `json:"name"`
	Kind  nifti.ElementKind `json:"kind"`
	Shape []int             `json:"shape"`
	Bytes int               `json:"bytes"`
	Path  string            `json:"path"`
}

// WriteWritten renders the files produced by a generator run.
func WriteWritten(w io.Writer, files []Written) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSHAPE\tBYTES\tPATH")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.Name, f.Kind, shapeString(f.Shape), f.Bytes, f.Path)
	}
	return tw.Flush()
}

// DatatypeRow is the JSON shape of one registry entry.
type DatatypeRow struct {
	Name      string `json:"name"`
	Code      int16  `json:"code"`
	ByteWidth int    `json:"byteWidth"`
	Channels  int    `json:"channels"`
	Bitpix    int16  `json:"bitpix"`
}

// DatatypeRows converts registry entries for JSON output.
func DatatypeRows(dts []nifti.Datatype) []DatatypeRow {
	rows := make([]DatatypeRow, len(dts))
	for i, dt := range dts {
		rows[i] = DatatypeRow{Name: dt.Name, Code: dt.Code, ByteWidth: dt.ByteWidth, Channels: dt.Channels, Bitpix: dt.Bitpix()}
	}
	return rows
}

// WriteDatatypes renders the datatype registry.
func WriteDatatypes(w io.Writer, dts []nifti.Datatype) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCODE\tBYTES\tCHANNELS\tBITPIX")
	for _, dt := range dts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", dt.Name, dt.Code, dt.ByteWidth, dt.Channels, dt.Bitpix())
	}
	return tw.Flush()
}

func shapeString(shape []int) string {
	if len(shape) == 0 {
		return "-"
	}
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "x")
}
