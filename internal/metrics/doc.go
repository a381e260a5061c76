/*
Package metrics collects Prometheus metrics for the gateway.

The Collector owns a private registry with:

	gateway_operations_total{operation,namespace,status}
	gateway_operation_duration_seconds{operation,namespace}
	gateway_operation_size_bytes{operation,namespace}
	gateway_errors_total{operation,namespace,category}
	gateway_notifications_total{backend,status}
	gateway_requests_in_flight

plus the Go runtime and process collectors. Handler exposes the registry and is
mounted on the API server's /metrics route when metrics are enabled.

Operations are the handler names (list, upload, download, metadata, delete,
list_buckets, create_bucket, delete_bucket) and namespaces are the registry
names, or "generic" for the admin path. Error categories come from pkg/errors.

A disabled Collector is safe to call and records nothing.
*/
package metrics
