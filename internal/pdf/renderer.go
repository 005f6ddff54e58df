// Package pdf は請求書の固定レイアウトPDFを生成する。
// 同じ請求書からは常に同じバイト列が生成される。
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/hitoshi/invoiceapi/internal/model"
)

// レイアウト定数（単位はpt、A4縦）
const (
	margin       = 50.0
	contentWidth = 495.0
	amountX      = 400.0
	amountWidth  = 100.0
	ruleRight    = 550.0
	billToY      = 160.0
	footerY      = 700.0
)

// プレースホルダー
const (
	placeholderClient      = "Valued Client"
	placeholderEmail       = "client@example.com"
	placeholderDescription = "Service Provided"
	paidAtLayout           = "02/01/2006, 15:04:05"
)

type rgb struct{ r, g, b int }

var (
	colorTitle   = rgb{0x1e, 0x40, 0xaf}
	colorMuted   = rgb{0x6b, 0x72, 0x80}
	colorHeading = rgb{0x1f, 0x29, 0x37}
	colorBody    = rgb{0x37, 0x41, 0x51}
	colorText    = rgb{0x11, 0x18, 0x27}
	colorRule    = rgb{0xe5, 0xe7, 0xeb}
	colorPaid    = rgb{0x10, 0xb9, 0x81}
	colorPending = rgb{0xf5, 0x9e, 0x0b}
	colorFooter  = rgb{0x9c, 0xa3, 0xaf}
)

// Renderer は請求書PDFを生成する。
type Renderer struct {
	compress bool
}

// NewRenderer はストリーム圧縮を有効にしたRendererを生成する。
func NewRenderer() *Renderer {
	return &Renderer{compress: true}
}

// Render は請求書1件を1ページのPDFにする。billerEmailはBILL TO欄に表示する。
func (r *Renderer) Render(inv *model.Invoice, billerEmail string) ([]byte, error) {
	doc := fpdf.New(fpdf.OrientationPortrait, fpdf.UnitPoint, fpdf.PageSizeA4, "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(false, margin)
	doc.SetCompression(r.compress)
	doc.SetCatalogSort(true)

	// 生成日時を請求書の作成日時に固定し、出力を再現可能にする
	stamp := inv.CreatedAt
	if stamp.IsZero() {
		stamp = time.Unix(0, 0)
	}
	doc.SetCreationDate(stamp.UTC())
	doc.SetModificationDate(stamp.UTC())
	doc.SetTitle("Invoice "+inv.InvoiceNumber, true)
	doc.SetCreator("Finance Platform", true)

	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	// ヘッダー
	setStyle(doc, "B", 28, colorTitle)
	textAt(doc, margin, 50, contentWidth, 28, "INVOICE", "C", tr)
	setStyle(doc, "", 12, colorMuted)
	textAt(doc, margin, 100, contentWidth, 15, "Invoice # "+inv.InvoiceNumber, "R", tr)
	textAt(doc, margin, 115, contentWidth, 15, "Issue Date: "+model.FormatDisplayDate(stamp), "R", tr)

	// BILL TO
	setStyle(doc, "B", 14, colorHeading)
	textAt(doc, margin, billToY, contentWidth, 16, "BILL TO:", "L", tr)
	setStyle(doc, "", 11, colorBody)
	textAt(doc, margin, billToY+25, contentWidth, 14, orDefault(inv.ClientName, placeholderClient), "L", tr)
	textAt(doc, margin, billToY+40, contentWidth, 14, orDefault(billerEmail, placeholderEmail), "L", tr)

	// 明細
	y := billToY + 80 + 25
	rule(doc, margin, y, ruleRight, 0.5, colorRule)
	y += 10

	setStyle(doc, "", 11, colorText)
	textAt(doc, margin, y, amountX-margin, 14, orDefault(inv.Description, placeholderDescription), "L", tr)
	textAt(doc, amountX, y, amountWidth, 14, model.FormatMoney(inv.Amount), "R", tr)

	y += 25
	textAt(doc, margin, y, amountX-margin, 14, "VAT (20%)", "L", tr)
	textAt(doc, amountX, y, amountWidth, 14, model.FormatMoney(inv.VAT), "R", tr)

	y += 35
	rule(doc, 350, y, ruleRight, 2, colorTitle)
	y += 10

	setStyle(doc, "B", 16, colorTitle)
	textAt(doc, 350, y, 50, 18, "TOTAL", "L", tr)
	textAt(doc, amountX, y, amountWidth, 18, model.FormatMoney(inv.Total), "R", tr)

	// ステータス
	status, statusColor := "PENDING", colorPending
	if inv.IsPaid() {
		status, statusColor = "PAID", colorPaid
	}
	setStyle(doc, "B", 12, statusColor)
	textAt(doc, margin, y+50, contentWidth, 15, "Status: "+status, "L", tr)

	setStyle(doc, "", 11, colorMuted)
	textAt(doc, margin, y+70, contentWidth, 14, "Due Date: "+model.FormatDueDate(inv.DueDate), "L", tr)

	if inv.PaidAt != nil {
		setStyle(doc, "", 10, colorPaid)
		textAt(doc, margin, y+90, contentWidth, 13, "Paid on: "+inv.PaidAt.UTC().Format(paidAtLayout), "L", tr)
	}

	// フッター
	setStyle(doc, "", 9, colorFooter)
	textAt(doc, margin, footerY, contentWidth, 12, "Thank you for your business!", "C", tr)
	textAt(doc, margin, footerY+15, contentWidth, 12, "Finance Platform • Professional Invoicing", "C", tr)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename はダウンロード時のファイル名を返す。
func Filename(inv *model.Invoice) string {
	return "invoice-" + inv.InvoiceNumber + ".pdf"
}

func setStyle(doc *fpdf.Fpdf, style string, size float64, c rgb) {
	doc.SetFont("Helvetica", style, size)
	doc.SetTextColor(c.r, c.g, c.b)
}

func textAt(doc *fpdf.Fpdf, x, y, w, h float64, s, align string, tr func(string) string) {
	doc.SetXY(x, y)
	doc.CellFormat(w, h, tr(s), "", 0, align, false, 0, "")
}

func rule(doc *fpdf.Fpdf, x1, y, x2, width float64, c rgb) {
	doc.SetLineWidth(width)
	doc.SetDrawColor(c.r, c.g, c.b)
	doc.Line(x1, y, x2, y)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
