package connector

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/baderkha/snowflake-migrate/pkg/migrate/config/targetcfg"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// stager : puts a local file somewhere the warehouse stage can see it.
// The returned cleanup removes the staged copy and is safe to call whatever happened after staging.
type stager interface {
	stage(ctx context.Context, db *sql.DB, localPath string) (cleanup func(), err error)
}

// internalStager : PUT into a snowflake internal stage
type internalStager struct {
	stageName string
	log       zerolog.Logger
}

func (s *internalStager) stage(ctx context.Context, db *sql.DB, localPath string) (func(), error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return nil, err
	}
	putSQL := fmt.Sprintf("PUT 'file://%s' @%s AUTO_COMPRESS=TRUE OVERWRITE=TRUE", filepath.ToSlash(abs), s.stageName)
	if _, err := db.ExecContext(ctx, putSQL); err != nil {
		return nil, fmt.Errorf("PUT %s : %w", filepath.Base(localPath), err)
	}
	return func() {
		// a successful copy purges the file already, this only matters when the copy failed
		rmSQL := fmt.Sprintf("REMOVE @%s/%s", s.stageName, filepath.Base(localPath))
		if _, err := db.ExecContext(context.Background(), rmSQL); err != nil {
			s.log.Warn().Err(err).Str("file", filepath.Base(localPath)).Msg("could not remove staged file")
		}
	}, nil
}

// s3Stager : uploads to the bucket an external stage points at
type s3Stager struct {
	client s3iface.S3API
	bucket string
	prefix string
	fs     afero.Fs
	log    zerolog.Logger
}

func newS3Client(opts targetcfg.S3Options) (s3iface.S3API, error) {
	cfg := aws.NewConfig()
	if opts.Region != "" {
		cfg = cfg.WithRegion(opts.Region)
	}
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint).WithS3ForcePathStyle(true)
	}
	if opts.AccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}
	return s3.New(sess), nil
}

func (s *s3Stager) key(localPath string) string {
	return path.Join(s.prefix, filepath.Base(localPath))
}

func (s *s3Stager) stage(ctx context.Context, _ *sql.DB, localPath string) (func(), error) {
	f, err := s.fs.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	key := s.key(localPath)
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Body:   f,
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("upload s3://%s/%s : %w", s.bucket, key, err)
	}
	return func() {
		_, err := s.client.DeleteObjectWithContext(context.Background(), &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("could not delete staged object")
		}
	}, nil
}
