/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package replication

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config carries the credentials and bucket layout for offsite dump/binlog
// archival, grounded on the teacher's S3Factory (storage/persistence-s3.go).
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string // custom endpoint for S3-compatible storage (MinIO, etc.)
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3Archive lazily opens its client on first use, same as the teacher's
// S3Storage.ensureOpen, so a server that never actually dumps never pays
// for a credential-resolution round trip at startup.
type S3Archive struct {
	cfg S3Config

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

func NewS3Archive(cfg S3Config) *S3Archive {
	return &S3Archive{cfg: cfg}
}

func (a *S3Archive) ensureOpen(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if a.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(a.cfg.Region))
	}
	if a.cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.cfg.AccessKeyID, a.cfg.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("replication: loading aws config: %w", err)
	}

	a.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if a.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.cfg.Endpoint)
		}
		o.UsePathStyle = a.cfg.ForcePathStyle
	})
	a.opened = true
	return nil
}

func (a *S3Archive) key(name string) string {
	pfx := strings.TrimSuffix(a.cfg.Prefix, "/")
	if pfx == "" {
		return name
	}
	return pfx + "/" + name
}

func (a *S3Archive) Store(ctx context.Context, name string, r io.Reader) error {
	if err := a.ensureOpen(ctx); err != nil {
		return err
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("replication: buffering %s for s3 upload: %w", name, err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.key(name)),
		Body:   bytes.NewReader(buf),
	})
	if err != nil {
		return fmt.Errorf("replication: s3 PutObject %s: %w", name, err)
	}
	return nil
}

func (a *S3Archive) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := a.ensureOpen(ctx); err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("replication: s3 GetObject %s: %w", name, err)
	}
	return out.Body, nil
}
