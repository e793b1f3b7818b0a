package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/event-signin/interfaces"
)

// S3Store implements an attendance store using Amazon S3 or compatible services.
// The log for a secret is the object <prefix>/<secret>.json.
type S3Store struct {
	client      *s3.S3
	bucketName  string
	prefix      string
	locks       keyedMutex
	log         *slog.Logger
	locationURI string
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string

	// AccessKey and SecretKey are optional. Without them the default AWS
	// credential chain (environment, shared config, instance role) is used.
	AccessKey string
	SecretKey string

	// PathStyle addresses the bucket in the path rather than the host name,
	// which most S3-compatible servers require.
	PathStyle bool
}

// NewS3Store creates a new S3 attendance store.
func NewS3Store(opts S3Options, log *slog.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("S3 bucket name is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	prefix := strings.Trim(opts.Prefix, "/")

	// Format the URI for tracking
	uri := fmt.Sprintf("s3://%s/%s?region=%s", opts.Bucket, prefix, opts.Region)
	if opts.AccessKey != "" {
		uri = fmt.Sprintf("s3://%s:***@%s/%s?region=%s", opts.AccessKey, opts.Bucket, prefix, opts.Region)
	}
	if opts.Endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", opts.Endpoint)
	}

	cfg := aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.PathStyle),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	} else {
		log.Debug("No S3 credentials in location, using the default credential chain",
			slog.String("bucket", opts.Bucket))
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client:      s3.New(sess),
		bucketName:  opts.Bucket,
		prefix:      prefix,
		log:         log,
		locationURI: uri,
	}, nil
}

// Fetch retrieves the log for secret. Returns ErrLogNotFound if the object doesn't exist.
func (b *S3Store) Fetch(ctx context.Context, secret string) (*interfaces.AttendanceLog, error) {
	if err := validateSecret(secret); err != nil {
		return nil, err
	}
	return b.fetch(ctx, b.getObjectKey(secret))
}

// Append adds record to the log for secret and uploads the whole document.
func (b *S3Store) Append(ctx context.Context, secret string, record interfaces.AttendanceRecord) error {
	if err := validateSecret(secret); err != nil {
		return err
	}

	start := time.Now()
	key := b.getObjectKey(secret)

	unlock := b.locks.Lock(secret)
	defer unlock()

	attendance, err := b.fetch(ctx, key)
	if errors.Is(err, interfaces.ErrLogNotFound) {
		attendance = interfaces.NewAttendanceLog()
	} else if err != nil {
		return err
	}

	attendance.Attendees = append(attendance.Attendees, record)

	data, err := encodeLog(attendance)
	if err != nil {
		return err
	}

	_, err = b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		b.log.Error("Failed to upload attendance log to S3",
			slog.String("bucket", b.bucketName),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("Appended attendance record in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.Int("attendees", len(attendance.Attendees)),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if the S3 store is accessible by attempting to head the bucket.
func (b *S3Store) Available(ctx context.Context) bool {
	start := time.Now()

	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Warn("S3 store unavailable",
			slog.String("bucket", b.bucketName),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}

	return true
}

// Name returns a unique identifier for this store.
func (b *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

// LocationURI returns the URI that identifies this store.
func (b *S3Store) LocationURI() string {
	return b.locationURI
}

func (b *S3Store) fetch(ctx context.Context, key string) (*interfaces.AttendanceLog, error) {
	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			b.log.Debug("Attendance log not found in S3",
				slog.String("bucket", b.bucketName),
				slog.String("key", key))
			return nil, interfaces.ErrLogNotFound
		}
		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.bucketName),
			slog.String("key", key),
			"err", err)
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return decodeLog(data)
}

func (b *S3Store) getObjectKey(secret string) string {
	name := secret + ".json"
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func isS3NotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}
