package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	HeightKey  attribute.Key = "block.height"
	TagKey     attribute.Key = "request.tag"
	BackendKey attribute.Key = "store.backend"
)

func Height(h uint64) attribute.KeyValue {
	return HeightKey.Int64(int64(h)) /* #nosec G115 its unlikely that value of height exceeds int64 max value */
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	status := "ok"
	if err != nil {
		status = "err"
	}
	return attribute.String("status", status)
}
