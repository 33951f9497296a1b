package reader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pairflow/internal/storage"
	"pairflow/logger"
)

var errNoObjectStore = errors.New("s3 input requested but no s3 client is configured")

func openObject(ctx context.Context, uri string, objects storage.ObjectAPI) (io.ReadCloser, error) {
	if objects == nil {
		return nil, errNoObjectStore
	}
	bucket, key, err := storage.ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s: %w", uri, err)
	}

	logger.GetLogger().WithComponent("file_source").WithFields(logger.Fields{
		"bucket": bucket,
		"key":    key,
		"size":   aws.ToInt64(out.ContentLength),
	}).Debug("streaming s3 object")

	return out.Body, nil
}
