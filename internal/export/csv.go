package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"genfity-staff-queue/internal/bulk"
	"genfity-staff-queue/internal/orders"
	"genfity-staff-queue/internal/storage"
	"genfity-staff-queue/internal/utils"
)

var ErrSessionFinished = errors.New("export already finished")

var csvHeader = []string{
	"Order Number", "Table", "Source", "Customer", "Status", "Priority", "Urgency",
	"Ordered At", "Wait (min)", "Delayed (min)", "Items", "Subtotal", "Tax", "Discount", "Total",
	"Payment", "Assigned Staff",
}

// CSVExporter writes one CSV file per bulk export and uploads it on Finish.
type CSVExporter struct {
	uploader Uploader
	opts     Options
	now      func() time.Time
}

func NewCSVExporter(uploader Uploader, opts Options) *CSVExporter {
	return &CSVExporter{uploader: uploader, opts: opts, now: time.Now}
}

func (e *CSVExporter) Begin(_ context.Context, staffID string) (bulk.ExportSession, error) {
	s := &csvSession{exporter: e, staffID: staffID}
	s.w = csv.NewWriter(&s.buf)
	if err := s.w.Write(csvHeader); err != nil {
		return nil, err
	}
	return s, nil
}

type csvSession struct {
	exporter *CSVExporter
	staffID  string

	mu   sync.Mutex
	buf  bytes.Buffer
	w    *csv.Writer
	rows int
	done bool
}

func (s *csvSession) Add(o orders.StaffOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrSessionFinished
	}
	if err := s.w.Write(csvRow(o, s.exporter.opts.Timezone)); err != nil {
		return err
	}
	s.rows++
	return nil
}

func (s *csvSession) Finish(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return "", ErrSessionFinished
	}
	s.done = true
	s.w.Flush()
	err := s.w.Error()
	body := append([]byte(nil), s.buf.Bytes()...)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	now := s.exporter.now()
	key := storage.ObjectKey("exports", s.staffID, "orders-"+now.UTC().Format("150405"), "csv", now)
	location, err := s.exporter.uploader.Put(ctx, key, body, "text/csv")
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	return location, nil
}

func csvRow(o orders.StaffOrder, tz string) []string {
	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	assigned := ""
	if o.AssignedStaff != nil {
		assigned = *o.AssignedStaff
	}
	return []string{
		o.OrderNumber,
		o.TableLabel(),
		o.Source,
		o.CustomerName,
		string(o.Status),
		string(o.Priority),
		string(o.UrgencyLevel),
		utils.FormatInTimezone(o.OrderTime, tz, "2006-01-02 15:04"),
		strconv.Itoa(o.ActualWaitTime),
		strconv.Itoa(o.DelayedMinutes),
		strings.Join(items, "; "),
		strconv.FormatFloat(o.Subtotal, 'f', 2, 64),
		strconv.FormatFloat(o.TaxAmount, 'f', 2, 64),
		strconv.FormatFloat(o.DiscountAmount, 'f', 2, 64),
		strconv.FormatFloat(o.TotalAmount, 'f', 2, 64),
		string(o.PaymentStatus),
		assigned,
	}
}
