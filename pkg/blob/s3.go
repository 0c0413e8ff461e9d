package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/golang/snappy"
)

var ErrMissingBucket = errors.New("s3 bucket is required")

type S3Config struct {
	Bucket   string `env:"FEDLEDGER_S3_BUCKET"`
	Region   string `env:"FEDLEDGER_S3_REGION"     envDefault:"us-east-1"`
	Endpoint string `env:"FEDLEDGER_S3_ENDPOINT"`
	// Leave the keys empty to use the default AWS credential chain.
	AccessKeyID     string `env:"FEDLEDGER_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"FEDLEDGER_S3_SECRET_ACCESS_KEY"`
	Prefix          string `env:"FEDLEDGER_S3_PREFIX"     envDefault:"weights/"`
	UsePathStyle    bool   `env:"FEDLEDGER_S3_PATH_STYLE" envDefault:"false"`
}

// ObjectAPI is the subset of the S3 client the store needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps snappy compressed blobs in an S3 compatible bucket.
type S3Store struct {
	client ObjectAPI
	bucket string
	prefix string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

func NewS3StoreWithClient(client ObjectAPI, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	cid := CID(data)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(s.prefix + cid),
		Body:            bytes.NewReader(snappy.Encode(nil, data)),
		ContentEncoding: aws.String("snappy"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", cid, err)
	}

	return cid, nil
}

func (s *S3Store) Get(ctx context.Context, cid string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + cid),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, pkgerrors.ErrNotFound
		}

		return nil, fmt.Errorf("s3 get %s: %w", cid, err)
	}
	defer resp.Body.Close()

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", cid, err)
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("snappy decode %s: %w", cid, err)
	}
	if err := Check(cid, data); err != nil {
		return nil, err
	}

	return data, nil
}
