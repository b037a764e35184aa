// Package sundaereport runs scheduled report generators and stores their JSON
// output in S3 under {service}/{report}/{date}/{hour}/{timestamp}.json.
package sundaereport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"time"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
)

// how many days GetRawAsOf walks back looking for a report
const maxLookback = 5

type GenerateCallback func(ctx context.Context) (interface{}, error)

type Handler struct {
	service sundaecli.Service
	logger  zerolog.Logger
	s3      s3iface.S3API
	stdout  io.Writer

	reportName string

	generate GenerateCallback
}

func ReportKey(serviceName, reportName string, timestamp time.Time) string {
	return fmt.Sprintf("%v/%v/%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"), timestamp.Format("15"), timestamp.Format("2006-01-02-15:04:05.json"))
}

func NewHandler(
	service sundaecli.Service,
	reportName string,
	generate GenerateCallback,
) *Handler {
	session := session.Must(session.NewSession(aws.NewConfig()))
	return NewHandlerWith(service, reportName, s3.New(session), generate)
}

// NewHandlerWith uses the given S3 client.
func NewHandlerWith(
	service sundaecli.Service,
	reportName string,
	s3Api s3iface.S3API,
	generate GenerateCallback,
) *Handler {
	return &Handler{
		service:    service,
		logger:     sundaecli.Logger(service),
		s3:         s3Api,
		stdout:     os.Stdout,
		reportName: reportName,
		generate:   generate,
	}
}

func (h *Handler) Generate(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Str("report", h.reportName).Msg("generating report")
	report, err := h.generate(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to generate report")
		return err
	}
	reportBytes, err := json.Marshal(report)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal report")
		return err
	}

	now := time.Now().UTC()
	if sundaecli.CommonOpts.Dry {
		return h.saveLocally(report, reportBytes)
	}

	key := ReportKey(h.service.Name, h.reportName, now)
	h.logger.Info().Str("bucket", ReportOpts.Bucket).Str("key", key).Int("size", len(reportBytes)).Msg("saving report to s3")
	_, err = h.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ReportOpts.Bucket),
		Body:        bytes.NewReader(reportBytes),
		Key:         aws.String(key),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("unable to save report to s3://%v/%v: %w", ReportOpts.Bucket, key, err)
	}
	return nil
}

func (h *Handler) saveLocally(report interface{}, reportBytes []byte) error {
	if ReportOpts.OutFile == "" {
		enc := json.NewEncoder(h.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if err := os.MkdirAll(path.Dir(ReportOpts.OutFile), 0755); err != nil {
		return err
	}
	h.logger.Info().Str("filename", ReportOpts.OutFile).Int("size", len(reportBytes)).Msg("dry run, saving report locally")
	return os.WriteFile(ReportOpts.OutFile, reportBytes, 0644)
}

// GetRawAsOf returns the newest report stored on the day of timestamp, walking
// back a day at a time when a day has none.
func GetRawAsOf(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, timestamp time.Time) ([]byte, string, error) {
	for count := 0; ; count++ {
		prefix := fmt.Sprintf("%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"))
		listOutput, err := s3Api.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int64(1000),
			Prefix:  aws.String(prefix),
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to list reports under %v: %w", prefix, err)
		}

		if len(listOutput.Contents) == 0 {
			if count >= maxLookback {
				return nil, "", fmt.Errorf("failed to find %v report within %v days of %v", reportName, maxLookback, timestamp.Format("2006-01-02"))
			}
			yesterday := timestamp.AddDate(0, 0, -1)
			timestamp = time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 23, 59, 59, 0, time.UTC)
			continue
		}

		sort.Slice(listOutput.Contents, func(i, j int) bool {
			return aws.StringValue(listOutput.Contents[i].Key) > aws.StringValue(listOutput.Contents[j].Key)
		})
		key := listOutput.Contents[0].Key

		output, err := s3Api.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    key,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to get report %v: %w", aws.StringValue(key), err)
		}
		defer output.Body.Close()

		data, err := io.ReadAll(output.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read report %v: %w", aws.StringValue(key), err)
		}
		return data, aws.StringValue(key), nil
	}
}

func GetLatest(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, obj any) (string, error) {
	data, key, err := GetRawAsOf(ctx, s3Api, bucket, serviceName, reportName, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return "", fmt.Errorf("failed to unmarshal latest report: %w", err)
	}
	return key, nil
}

// Latest prints, or writes to --out-file, the newest stored report.
func (h *Handler) Latest(ctx context.Context) error {
	data, key, err := GetRawAsOf(ctx, h.s3, ReportOpts.Bucket, h.service.Name, h.reportName, time.Now().UTC())
	if err != nil {
		return err
	}
	h.logger.Info().Str("key", key).Msg("found latest report")

	if ReportOpts.OutFile == "" {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			return err
		}
		pretty.WriteString("\n")
		_, err := h.stdout.Write(pretty.Bytes())
		return err
	}
	if err := os.MkdirAll(path.Dir(ReportOpts.OutFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(ReportOpts.OutFile, data, 0644)
}

func (h *Handler) Start() error {
	switch {
	case ReportOpts.GetLatest:
		return h.Latest(context.Background())

	case sundaecli.CommonOpts.Console:
		return h.Generate(context.Background(), nil)

	default:
		lambda.Start(h.Generate)
	}
	return nil
}
