package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// S3Config selects the bucket images are written to. Endpoint is set for
// S3-compatible services and switches to path-style addressing.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PublicURL string
}

// S3Store keeps images in an S3 bucket, one key prefix per folder.
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Store loads AWS credentials from the default chain.
func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(c.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, cfg: c}, nil
}

// objectURL is the public URL of key.
func (s *S3Store) objectURL(key string) string {
	switch {
	case s.cfg.PublicURL != "":
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}

func (s *S3Store) Upload(ctx context.Context, folder, name string, content io.Reader, contentType string) (string, error) {
	folder, name, err := names(folder, name)
	if err != nil {
		return "", err
	}
	body, ct, err := sniff(content, contentType)
	if err != nil {
		return "", err
	}
	key := folder + "/" + name
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(ct),
		Metadata:    map[string]string{"original-filename": name},
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading to S3")
	}
	return s.objectURL(key), nil
}

func (s *S3Store) List(ctx context.Context, folder string) ([]string, error) {
	folder, err := FolderName(folder)
	if err != nil {
		return nil, err
	}
	urls := []string{}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(folder + "/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "listing S3 objects")
		}
		for _, obj := range page.Contents {
			urls = append(urls, s.objectURL(aws.ToString(obj.Key)))
		}
	}
	return urls, nil
}
