// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used across spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	DownloadURLKey         = "download.url"
	DownloadVideoFormatKey = "download.video_format"
	DownloadAudioFormatKey = "download.audio_format"
	DownloadFormatSpecKey  = "download.format_spec"
	DownloadSlotKey        = "download.slot"
	DownloadCookiesKey     = "download.cookies"

	DetailsCacheKey   = "details.cache"
	DetailsQualityKey = "details.qualities"

	ErrorKey     = "error"
	ErrorKindKey = "error.kind"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// DownloadAttributes describes a download request. Empty values are omitted.
func DownloadAttributes(url, videoFormat, audioFormat string, cookies bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if url != "" {
		attrs = append(attrs, attribute.String(DownloadURLKey, url))
	}
	if videoFormat != "" {
		attrs = append(attrs, attribute.String(DownloadVideoFormatKey, videoFormat))
	}
	if audioFormat != "" {
		attrs = append(attrs, attribute.String(DownloadAudioFormatKey, audioFormat))
	}
	return append(attrs, attribute.Bool(DownloadCookiesKey, cookies))
}

// ErrorAttributes marks a span as failed with a classification.
func ErrorAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorKindKey, kind),
	}
}
