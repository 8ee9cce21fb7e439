package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"genfity-staff-queue/internal/orders"
	"genfity-staff-queue/internal/storage"
	"genfity-staff-queue/internal/utils"

	"github.com/phpdave11/gofpdf"
	"go.uber.org/zap"
)

// Uploader stores a rendered artifact and returns a link to it.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type Options struct {
	MerchantName string
	Timezone     string
}

// TicketPrinter renders a kitchen ticket per order and uploads it.
type TicketPrinter struct {
	uploader Uploader
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

func NewTicketPrinter(uploader Uploader, opts Options, logger *zap.Logger) *TicketPrinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketPrinter{uploader: uploader, opts: opts, logger: logger, now: time.Now}
}

func (p *TicketPrinter) PrintOrder(ctx context.Context, order orders.StaffOrder) (string, error) {
	buf, err := renderTicketPDF(order, p.opts, p.now())
	if err != nil {
		return "", fmt.Errorf("render ticket: %w", err)
	}
	key := storage.ObjectKey("tickets", "", order.OrderNumber, "pdf", p.now())
	location, err := p.uploader.Put(ctx, key, buf.Bytes(), "application/pdf")
	if err != nil {
		return "", fmt.Errorf("upload ticket: %w", err)
	}
	p.logger.Info("kitchen ticket printed", zap.String("order_id", order.ID), zap.String("key", key))
	return location, nil
}

func renderTicketPDF(order orders.StaffOrder, opts Options, printedAt time.Time) (*bytes.Buffer, error) {
	// 80mm thermal roll; height grows with the item list.
	height := 120.0 + float64(len(order.Items))*14
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(true, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if opts.MerchantName != "" {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 6, tr(opts.MerchantName), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("Order %s", order.OrderNumber)), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	if table := order.TableLabel(); table != "" {
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Table %s", table)), "", 1, "C", false, 0, "")
	}
	if order.Source != "" {
		pdf.CellFormat(0, 5, tr(order.Source), "", 1, "C", false, 0, "")
	}
	if order.CustomerName != "" {
		pdf.CellFormat(0, 5, tr(order.CustomerName), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 5, "Placed: "+utils.FormatInTimezone(order.OrderTime, opts.Timezone, "02 Jan 15:04"), "", 1, "C", false, 0, "")

	if order.UrgencyLevel == orders.UrgencyUrgent || order.UrgencyLevel == orders.UrgencyEmergency {
		pdf.Ln(1)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 7, string(order.UrgencyLevel), "1", 1, "C", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	for _, item := range order.Items {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%dx %s", item.Quantity, item.Name)), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		if item.SpecialRequests != nil && strings.TrimSpace(*item.SpecialRequests) != "" {
			pdf.MultiCell(0, 4, tr("Notes: "+strings.TrimSpace(*item.SpecialRequests)), "", "L", false)
		}
		if len(item.Allergens) > 0 {
			pdf.SetFont("Arial", "B", 9)
			pdf.MultiCell(0, 4, tr("ALLERGENS: "+strings.Join(item.Allergens, ", ")), "", "L", false)
		}
		pdf.Ln(1)
	}

	if order.Notes != nil && strings.TrimSpace(*order.Notes) != "" {
		pdf.Ln(1)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 4, tr("Order notes: "+strings.TrimSpace(*order.Notes)), "", "L", false)
	}
	if order.AssignedStaff != nil {
		pdf.CellFormat(0, 5, tr("Assigned: "+*order.AssignedStaff), "", 1, "L", false, 0, "")
	}

	pdf.Ln(1)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Total "+utils.FormatMoney(order.TotalAmount), "T", 1, "R", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(0, 4, "Printed: "+utils.FormatInTimezone(printedAt, opts.Timezone, "02 Jan 15:04:05"), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
