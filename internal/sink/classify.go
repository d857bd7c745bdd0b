// internal/sink/classify.go
package sink

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"

	"github.com/manu4linux/archivedir/internal/core"
)

// permanentCode reports whether an API error code is one retrying
// cannot fix: credential, permission and addressing failures.
func permanentCode(code string) bool {
	switch code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
		"ExpiredToken", "NoSuchBucket", "NoSuchKey", "NotFound",
		"PermanentRedirect", "InvalidBucketName", "MethodNotAllowed",
		"AuthorizationHeaderMalformed":
		return true
	}
	return false
}

// classify tags a backend error as transient or permanent. Unknown
// failures default to transient so an unrecognized network hiccup
// still gets its retries.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, core.ErrSinkTransient) || errors.Is(err, core.ErrSinkPermanent) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if permanentCode(apiErr.ErrorCode()) {
			return core.WrapError(core.ErrSinkPermanent, err)
		}
		if apiErr.ErrorFault() == smithy.FaultClient && !throttled(apiErr.ErrorCode()) {
			return core.WrapError(core.ErrSinkPermanent, err)
		}
		return core.WrapError(core.ErrSinkTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.WrapError(core.ErrSinkTransient, err)
	}

	return core.WrapError(core.ErrSinkTransient, err)
}

func throttled(code string) bool {
	switch code {
	case "Throttling", "ThrottlingException", "SlowDown", "RequestTimeout", "RequestLimitExceeded", "TooManyRequests":
		return true
	}
	return false
}

// classifyStatus tags an HTTP status from a REST backend.
func classifyStatus(status int, err error) error {
	switch {
	case status == 401 || status == 403 || status == 404 ||
		(status >= 400 && status < 500 && status != 408 && status != 429):
		return core.WrapError(core.ErrSinkPermanent, err)
	default:
		return core.WrapError(core.ErrSinkTransient, err)
	}
}
