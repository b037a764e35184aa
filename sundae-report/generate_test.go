package sundaereport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/tj/assert"
)

type fakeS3 struct {
	s3iface.S3API

	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(input.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2WithContext(_ aws.Context, input *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	var out s3.ListObjectsV2Output
	for key := range f.objects {
		if strings.HasPrefix(key, aws.StringValue(input.Prefix)) {
			out.Contents = append(out.Contents, &s3.Object{Key: aws.String(key)})
		}
	}
	return &out, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(input.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func withOpts(t *testing.T, dry bool, outFile string) {
	prevDry, prevOpts := sundaecli.CommonOpts.Dry, ReportOpts
	sundaecli.CommonOpts.Dry = dry
	ReportOpts.Bucket = "reports"
	ReportOpts.OutFile = outFile
	t.Cleanup(func() {
		sundaecli.CommonOpts.Dry = prevDry
		ReportOpts = prevOpts
	})
}

func census(ctx context.Context) (interface{}, error) {
	return map[string]interface{}{"count": 2, "connections": []string{"a", "b"}}, nil
}

func TestReportKey(t *testing.T) {
	ts := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "relay-census/census/2024-03-07/14/2024-03-07-14:05:09.json", ReportKey("relay-census", "census", ts))
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	service := sundaecli.NewService("relay-census")

	t.Run("s3", func(t *testing.T) {
		withOpts(t, false, "")
		api := &fakeS3{objects: map[string][]byte{}}
		h := NewHandlerWith(service, "census", api, census)

		assert.NoError(t, h.Generate(ctx, nil))
		assert.Len(t, api.objects, 1)
		for key, data := range api.objects {
			assert.True(t, strings.HasPrefix(key, "relay-census/census/"))
			assert.JSONEq(t, `{"count":2,"connections":["a","b"]}`, string(data))
		}

		var latest struct {
			Count int `json:"count"`
		}
		_, err := GetLatest(ctx, api, "reports", "relay-census", "census", &latest)
		assert.NoError(t, err)
		assert.Equal(t, 2, latest.Count)
	})

	t.Run("s3 failure", func(t *testing.T) {
		withOpts(t, false, "")
		api := &fakeS3{objects: map[string][]byte{}, putErr: errors.New("boom")}
		assert.Error(t, NewHandlerWith(service, "census", api, census).Generate(ctx, nil))
	})

	t.Run("generate failure", func(t *testing.T) {
		withOpts(t, false, "")
		api := &fakeS3{objects: map[string][]byte{}}
		h := NewHandlerWith(service, "census", api, func(context.Context) (interface{}, error) {
			return nil, errors.New("boom")
		})
		assert.Error(t, h.Generate(ctx, nil))
		assert.Len(t, api.objects, 0)
	})

	t.Run("dry run to stdout", func(t *testing.T) {
		withOpts(t, true, "")
		api := &fakeS3{objects: map[string][]byte{}}
		h := NewHandlerWith(service, "census", api, census)
		var out bytes.Buffer
		h.stdout = &out

		assert.NoError(t, h.Generate(ctx, nil))
		assert.Len(t, api.objects, 0)
		assert.JSONEq(t, `{"count":2,"connections":["a","b"]}`, out.String())
	})

	t.Run("dry run to file", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "out", "census.json")
		withOpts(t, true, filename)
		h := NewHandlerWith(service, "census", &fakeS3{objects: map[string][]byte{}}, census)

		assert.NoError(t, h.Generate(ctx, nil))
		data, err := os.ReadFile(filename)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"count":2,"connections":["a","b"]}`, string(data))
	})
}

func TestGetRawAsOf(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 7, 14, 0, 0, 0, time.UTC)

	t.Run("walks back to the newest day with a report", func(t *testing.T) {
		twoDaysAgo := now.AddDate(0, 0, -2)
		newest := ReportKey("svc", "census", twoDaysAgo.Add(time.Hour))
		api := &fakeS3{objects: map[string][]byte{
			ReportKey("svc", "census", twoDaysAgo):            []byte(`{"n":1}`),
			newest:                                            []byte(`{"n":2}`),
			ReportKey("svc", "census", now.AddDate(0, 0, -3)): []byte(`{"n":0}`),
			ReportKey("svc", "other", now):                    []byte(`{"n":9}`),
		}}
		data, key, err := GetRawAsOf(ctx, api, "reports", "svc", "census", now)
		assert.NoError(t, err)
		assert.Equal(t, newest, key)
		assert.Equal(t, `{"n":2}`, string(data))
	})

	t.Run("gives up", func(t *testing.T) {
		api := &fakeS3{objects: map[string][]byte{}}
		_, _, err := GetRawAsOf(ctx, api, "reports", "svc", "census", now)
		assert.Error(t, err)
	})
}

func TestLatest(t *testing.T) {
	withOpts(t, false, "")
	now := time.Now().UTC()
	api := &fakeS3{objects: map[string][]byte{
		ReportKey("relay-census", "census", now): []byte(`{"count":1}`),
	}}
	h := NewHandlerWith(sundaecli.NewService("relay-census"), "census", api, census)
	var out bytes.Buffer
	h.stdout = &out

	assert.NoError(t, h.Latest(context.Background()))
	assert.JSONEq(t, `{"count":1}`, out.String())
}
