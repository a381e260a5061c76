package s3

import (
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	gwerrors "github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/errors"
)

const component = "s3"

// translateError classifies an engine error into the gateway taxonomy.
// fallback is used for anything that is not a recognised not-found,
// conflict or not-empty condition.
func translateError(err error, operation, bucket, key string, fallback gwerrors.ErrorCode) error {
	code := classifyError(err, key, fallback)

	var message string
	switch code {
	case gwerrors.ErrCodeBucketNotFound:
		message = fmt.Sprintf("bucket not found: %s", bucket)
	case gwerrors.ErrCodeObjectNotFound:
		message = fmt.Sprintf("object not found: %s/%s", bucket, key)
	case gwerrors.ErrCodeBucketExists:
		message = fmt.Sprintf("bucket already exists: %s", bucket)
	case gwerrors.ErrCodeBucketNotEmpty:
		message = fmt.Sprintf("bucket not empty: %s", bucket)
	default:
		if key != "" {
			message = fmt.Sprintf("%s failed for %s/%s", operation, bucket, key)
		} else {
			message = fmt.Sprintf("%s failed for %s", operation, bucket)
		}
	}

	gwErr := gwerrors.Wrap(err, code, message).
		WithComponent(component).
		WithOperation(operation)
	if bucket != "" {
		gwErr.WithContext("bucket", bucket)
	}
	if key != "" {
		gwErr.WithContext("key", key)
	}
	return gwErr
}

func classifyError(err error, key string, fallback gwerrors.ErrorCode) gwerrors.ErrorCode {
	notFound := gwerrors.ErrCodeObjectNotFound
	if key == "" {
		notFound = gwerrors.ErrCodeBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return gwerrors.ErrCodeBucketNotFound
		case "NoSuchKey":
			return gwerrors.ErrCodeObjectNotFound
		case "NotFound":
			// HEAD responses carry no body, so the code is generic.
			return notFound
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return gwerrors.ErrCodeBucketExists
		case "BucketNotEmpty":
			return gwerrors.ErrCodeBucketNotEmpty
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return notFound
	}

	return fallback
}
