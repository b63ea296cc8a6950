package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	sc "github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet       = "Transactions"
	exportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeader = []any{"Date", "Sender", "Sender type", "Members", "Category", "Notes", "Amount", "Added by"}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Export is an uploaded workbook and a temporary link to download it.
type Export struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// ExportService renders a fund's ledger as an XLSX workbook and publishes it
// to S3-compatible object storage.
type ExportService struct {
	base
	config *sc.Config
}

func NewExportService(tx dbx.Transactor, m repomanager.RepositoryManager, logger logging.Logger, config *sc.Config) *ExportService {
	return &ExportService{
		base:   newBase(tx, m, logger, "exports"),
		config: config,
	}
}

// ExportKey names the object a fund export is stored under.
func ExportKey(fundID string, d time.Time) string {
	return fmt.Sprintf("exports/%s/%d/%02d/%02d/%v.xlsx", fundID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) getClients(ctx context.Context) (*s3.Client, *s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, newS3PresignClient(client), nil
}

// ExportFund uploads the fund's transactions and returns a presigned
// download link. Anyone with access to the fund may export it.
func (s *ExportService) ExportFund(ctx context.Context, actorID, fundID string) (*Export, error) {
	db := s.tx.Conn()

	fund, st, err := s.standing(ctx, db, fundID, actorID)
	if err != nil {
		return nil, err
	}
	if !st.HasAccess() {
		return nil, noAccess()
	}

	views, err := s.repomanager.Transactions(db).ListByFund(ctx, fundID, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	body, err := renderWorkbook(views)
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	client, presignClient, err := s.getClients(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	bucket := s.config.S3Bucket
	key := ExportKey(fund.ID, now)
	name := exportFileName(fund.Name, now)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:             &bucket,
		Key:                &key,
		Body:               bytes.NewReader(body),
		ContentType:        aws.String(exportContentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", name)),
	}); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}

	validity := s.config.ExportLinkValidityDuration
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	s.logger.Info(ctx, "fund exported", "fund_id", fund.ID, "key", key, "rows", len(views), "actor", actorID)
	return &Export{Key: key, URL: req.URL, ExpiresAt: now.Add(validity)}, nil
}

func exportFileName(fundName string, d time.Time) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return '_'
		}
		return r
	}, fundName)
	return fmt.Sprintf("%s %s.xlsx", clean, d.Format(ledger.DateLayout))
}

// renderWorkbook writes views, newest first, followed by a total row.
func renderWorkbook(views []*models.TransactionView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}
	boldMoney, err := f.NewStyle(&excelize.Style{NumFmt: 2, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", "H1", bold); err != nil {
		return nil, err
	}

	total := decimal.Zero
	row := 2
	for _, v := range views {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		values := []any{
			v.Date.Format(ledger.DateLayout),
			v.SenderName,
			string(v.SenderType),
			strings.Join(v.SenderMemberNames, ", "),
			v.Category,
			v.Notes,
			v.Amount.InexactFloat64(),
			v.CreatorName,
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, err
		}
		amountCell := fmt.Sprintf("G%d", row)
		if err := f.SetCellStyle(exportSheet, amountCell, amountCell, money); err != nil {
			return nil, err
		}
		total = total.Add(v.Amount)
		row++
	}

	if err := f.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), "Total"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(exportSheet, fmt.Sprintf("G%d", row), total.InexactFloat64()); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, fmt.Sprintf("F%d", row), fmt.Sprintf("G%d", row), boldMoney); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(exportSheet, "A", "H", 16); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
