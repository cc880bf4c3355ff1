package receipt

import (
	"fmt"
	"html/template"
	"strings"
)

// baseFontPx is the markup font size at scale 1.
const baseFontPx = 12

var markupTmpl = template.Must(template.New("receipt").Parse(
	`<div class="receipt" style="width:{{.PaperWidth}}mm;max-width:{{.Columns}}ch;font-family:'Courier New',monospace;font-size:{{.FontPx}}px;line-height:1.25;color:#000;">` +
		`{{range .Header}}<div style="text-align:center;">{{.}}</div>{{end}}` +
		`<hr style="border:0;border-top:3px double #000;">` +
		`<div style="text-align:center;font-weight:bold;font-size:{{.BannerPx}}px;">ORDER #{{.OrderNumber}}</div>` +
		`{{range .Rows}}<div><b>{{.Label}}:</b> {{.Value}}</div>{{end}}` +
		`<hr style="border:0;border-top:1px dashed #000;">` +
		`{{range .Items}}<div style="display:flex;justify-content:space-between;"><span>{{.Quantity}} x {{.Name}}</span><span>{{.Total}}</span></div>` +
		`{{range .Modifiers}}<div style="padding-left:2ch;">+ {{.}}</div>{{end}}{{end}}` +
		`<hr style="border:0;border-top:1px dashed #000;">` +
		`<div style="display:flex;justify-content:space-between;"><span>Subtotal</span><span>{{.Subtotal}}</span></div>` +
		`<div style="display:flex;justify-content:space-between;"><span>Tax</span><span>{{.Tax}}</span></div>` +
		`<div style="display:flex;justify-content:space-between;font-weight:bold;"><span>TOTAL</span><span>{{.Total}}</span></div>` +
		`{{if .Instructions}}<hr style="border:0;border-top:1px dashed #000;"><div><b>NOTES:</b></div><div style="white-space:pre-wrap;">{{.Instructions}}</div>{{end}}` +
		`<hr style="border:0;border-top:1px dashed #000;">` +
		`{{if .Timestamp}}<div style="text-align:center;">{{.Timestamp}}</div>{{end}}` +
		`{{range .Footer}}<div style="text-align:center;">{{.}}</div>{{end}}` +
		`</div>`))

type markupView struct {
	*Document
	FontPx   string
	BannerPx string
}

// EncodeMarkup renders the document as an embeddable HTML fragment with inline
// styling sized to the paper width.
func EncodeMarkup(doc *Document) (string, error) {
	cols := doc.Columns
	if cols <= 0 {
		cols = ColumnsFor(doc.PaperWidth)
	}
	d := *doc
	d.Columns = cols
	scale := doc.FontScale
	if scale <= 0 {
		scale = 1
	}
	view := markupView{
		Document: &d,
		FontPx:   fmt.Sprintf("%.1f", baseFontPx*scale),
		BannerPx: fmt.Sprintf("%.1f", baseFontPx*scale*1.5),
	}
	var b strings.Builder
	if err := markupTmpl.Execute(&b, view); err != nil {
		return "", err
	}
	return b.String(), nil
}
