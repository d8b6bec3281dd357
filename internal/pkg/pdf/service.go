// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/order"
)

var vietnam = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}()

// Service renders order invoices
type Service struct {
	config config.InvoiceConfig
	tmpl   *template.Template
	now    func() time.Time
}

// NewService creates a new PDF service
func NewService(cfg config.InvoiceConfig) *Service {
	if cfg.WkhtmltopdfPath != "" {
		wkhtmltopdf.SetPath(cfg.WkhtmltopdfPath)
	}
	return &Service{
		config: cfg,
		tmpl: template.Must(template.New("invoice").Funcs(template.FuncMap{
			"vnd": FormatVND,
		}).Parse(invoiceTemplate)),
		now: time.Now,
	}
}

// InvoiceData represents the data passed to the invoice template
type InvoiceData struct {
	InvoiceNumber string
	InvoiceDate   string
	OrderDate     string
	StoreName     string
	StoreAddress  string
	Order         *order.Order
}

// GenerateInvoice generates a PDF invoice for an order
func (s *Service) GenerateInvoice(o *order.Order) (*bytes.Buffer, error) {
	htmlContent, err := s.RenderHTML(o)
	if err != nil {
		return nil, err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(strings.NewReader(htmlContent))
	page.Encoding.Set("utf-8")
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}
	return bytes.NewBuffer(pdfg.Bytes()), nil
}

// RenderHTML builds the invoice page that GenerateInvoice converts
func (s *Service) RenderHTML(o *order.Order) (string, error) {
	data := InvoiceData{
		InvoiceNumber: "INV-" + strings.TrimPrefix(o.OrderNumber, "ORD-"),
		InvoiceDate:   s.now().In(vietnam).Format("02/01/2006"),
		OrderDate:     o.CreatedAt.In(vietnam).Format("02/01/2006 15:04"),
		StoreName:     s.config.StoreName,
		StoreAddress:  s.config.StoreAddress,
		Order:         o,
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// FormatVND groups thousands with dots: 1250000 -> "1.250.000 ₫"
func FormatVND(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + b.String() + " ₫"
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        body { font-family: "DejaVu Sans", Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { border-bottom: 2px solid #eee; padding-bottom: 16px; margin-bottom: 24px; }
        .invoice-title { font-size: 26px; font-weight: bold; color: #2563eb; }
        table { width: 100%; border-collapse: collapse; }
        .items th { background: #f8fafc; text-align: left; padding: 8px; border-bottom: 2px solid #e2e8f0; }
        .items td { padding: 8px; border-bottom: 1px solid #e2e8f0; }
        .num { text-align: right; }
        .totals { width: 40%; margin-left: 60%; margin-top: 16px; }
        .totals td { padding: 4px 8px; }
        .grand { font-weight: bold; font-size: 16px; border-top: 2px solid #333; }
    </style>
</head>
<body>
    <div class="header">
        <div class="invoice-title">{{.StoreName}}</div>
        {{if .StoreAddress}}<div>{{.StoreAddress}}</div>{{end}}
    </div>

    <table>
        <tr>
            <td>
                <strong>Invoice:</strong> {{.InvoiceNumber}}<br>
                <strong>Order:</strong> {{.Order.OrderNumber}}<br>
                <strong>Order date:</strong> {{.OrderDate}}<br>
                <strong>Issued:</strong> {{.InvoiceDate}}
            </td>
            <td>
                <strong>Ship to:</strong><br>
                {{with .Order.ShippingAddress}}
                {{.RecipientName}} ({{.Phone}})<br>
                {{.AddressLine}}{{if .Ward}}, {{.Ward}}{{end}}{{if .District}}, {{.District}}{{end}}{{if .City}}, {{.City}}{{end}}
                {{end}}
            </td>
        </tr>
    </table>

    <br>
    <table class="items">
        <tr><th>Title</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
        {{range .Order.Items}}
        <tr>
            <td>{{.Title}}</td>
            <td class="num">{{.Quantity}}</td>
            <td class="num">{{vnd .UnitPrice}}</td>
            <td class="num">{{vnd .Subtotal}}</td>
        </tr>
        {{end}}
    </table>

    <table class="totals">
        <tr><td>Subtotal</td><td class="num">{{vnd .Order.Subtotal}}</td></tr>
        {{if .Order.DiscountAmount}}<tr><td>Discount{{if .Order.PromotionCode}} ({{.Order.PromotionCode}}){{end}}</td><td class="num">-{{vnd .Order.DiscountAmount}}</td></tr>{{end}}
        <tr class="grand"><td>Total</td><td class="num">{{vnd .Order.Total}}</td></tr>
        <tr><td>Payment</td><td class="num">{{.Order.PaymentMethod}} / {{.Order.Status}}</td></tr>
    </table>
</body>
</html>
`
